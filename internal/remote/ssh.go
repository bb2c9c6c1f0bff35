package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/retry"
)

const (
	defaultPort        = 22
	defaultUser        = "root"
	defaultDialTimeout = 10 * time.Second
)

// SSHConfig configures an SSHExecutor.
type SSHConfig struct {
	User       string
	Port       int
	PrivateKey []byte

	// DialTimeout bounds each TCP connect attempt.
	DialTimeout time.Duration

	// Retry controls reconnect attempts. Zero means retry.Boot.
	Retry retry.Backoff

	// HostKeyCallback verifies host keys. Nil accepts any key.
	HostKeyCallback ssh.HostKeyCallback
}

// SSHExecutor runs commands over SSH with public key authentication. The
// key is parsed once; connections are opened per call.
type SSHExecutor struct {
	config SSHConfig
	signer ssh.Signer
}

// NewSSHExecutor validates cfg and parses its private key.
func NewSSHExecutor(cfg SSHConfig) (*SSHExecutor, error) {
	if len(cfg.PrivateKey) == 0 {
		return nil, errors.New("ssh: private key cannot be empty")
	}
	if cfg.User == "" {
		cfg.User = defaultUser
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.Retry.Attempts == 0 {
		cfg.Retry = retry.Boot
	}
	if cfg.HostKeyCallback == nil {
		cfg.HostKeyCallback = ssh.InsecureIgnoreHostKey() //nolint:gosec // hosts are recreated with fresh keys
	}

	signer, err := ssh.ParsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("ssh: failed to parse private key: %w", err)
	}
	return &SSHExecutor{config: cfg, signer: signer}, nil
}

// NewSSHExecutorFromFile reads the private key at keyPath.
func NewSSHExecutorFromFile(keyPath string, cfg SSHConfig) (*SSHExecutor, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("ssh: failed to read private key: %w", err)
	}
	cfg.PrivateKey = key
	return NewSSHExecutor(cfg)
}

// Run executes command on host. Output is captured and streamed to the
// debug log line by line.
func (e *SSHExecutor) Run(ctx context.Context, host, command string) (*Result, error) {
	client, err := e.connect(ctx, host)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return nil, &domain.ConnectError{Host: host, Err: err}
	}
	defer func() { _ = session.Close() }()

	var stdout, stderr bytes.Buffer
	outLog := newLineLogger(host, "stdout")
	errLog := newLineLogger(host, "stderr")
	session.Stdout = io.MultiWriter(&stdout, outLog)
	session.Stderr = io.MultiWriter(&stderr, errLog)

	log.Debug().Str("host", host).Str("command", command).Msg("running remote command")
	code, err := wait(ctx, session, func() error { return session.Run(command) })
	outLog.Flush()
	errLog.Flush()
	if err != nil {
		return nil, &domain.ConnectError{Host: host, Err: err}
	}
	return &Result{ExitCode: code, Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// Upload writes data to path on host, creating parent directories.
func (e *SSHExecutor) Upload(ctx context.Context, host, dest string, data []byte, mode fs.FileMode) error {
	client, err := e.connect(ctx, host)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return &domain.ConnectError{Host: host, Err: err}
	}
	defer func() { _ = session.Close() }()

	var stderr bytes.Buffer
	session.Stdin = bytes.NewReader(data)
	session.Stderr = &stderr

	command := UploadCommand(dest, mode)
	code, err := wait(ctx, session, func() error { return session.Run(command) })
	if err != nil {
		return &domain.ConnectError{Host: host, Err: err}
	}
	if code != 0 {
		return &domain.ExecError{Host: host, Command: command, ExitCode: code, Stderr: stderr.String()}
	}
	return nil
}

// UploadCommand is the shell command that receives an upload on stdin.
func UploadCommand(dest string, mode fs.FileMode) string {
	q := Quote(dest)
	return fmt.Sprintf("mkdir -p %s && cat > %s && chmod %o %s",
		Quote(path.Dir(dest)), q, mode.Perm(), q)
}

func (e *SSHExecutor) connect(ctx context.Context, host string) (*ssh.Client, error) {
	config := &ssh.ClientConfig{
		User:            e.config.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(e.signer)},
		HostKeyCallback: e.config.HostKeyCallback,
		Timeout:         e.config.DialTimeout,
	}
	addr := net.JoinHostPort(host, strconv.Itoa(e.config.Port))

	var client *ssh.Client
	err := retry.Do(ctx, e.config.Retry, isDialRetryable, func() error {
		var dialErr error
		client, dialErr = ssh.Dial("tcp", addr, config)
		if dialErr != nil {
			log.Debug().Str("host", host).Err(dialErr).Msg("ssh dial failed")
		}
		return dialErr
	})
	if err != nil {
		return nil, &domain.ConnectError{Host: host, Err: err}
	}
	return client, nil
}

// isDialRetryable retries everything except authentication failures, which
// will not fix themselves.
func isDialRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !strings.Contains(err.Error(), "unable to authenticate")
}

// wait runs fn and maps its error to an exit code. Cancelling ctx closes
// the session.
func wait(ctx context.Context, session *ssh.Session, fn func() error) (int, error) {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Close()
		<-done
		return 0, ctx.Err()
	}
	return exitCode(err)
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return 0, err
}

// lineLogger writes complete lines to the debug log.
type lineLogger struct {
	host   string
	stream string

	mu  sync.Mutex
	buf []byte
}

func newLineLogger(host, stream string) *lineLogger {
	return &lineLogger{host: host, stream: stream}
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, p...)
	for {
		i := bytes.IndexByte(l.buf, '\n')
		if i < 0 {
			break
		}
		l.emit(string(l.buf[:i]))
		l.buf = l.buf[i+1:]
	}
	return len(p), nil
}

// Flush logs any trailing partial line.
func (l *lineLogger) Flush() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.buf) > 0 {
		l.emit(string(l.buf))
		l.buf = nil
	}
}

func (l *lineLogger) emit(line string) {
	log.Debug().Str("host", l.host).Str("stream", l.stream).Msg(strings.TrimRight(line, "\r"))
}
