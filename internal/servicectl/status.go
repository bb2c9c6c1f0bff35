// Package servicectl starts, stops and probes services on fleet hosts and
// interprets their process manager's output as a three-valued status.
package servicectl

import (
	"strings"

	"nathanbeddoewebdev/fleet/internal/domain"
	"nathanbeddoewebdev/fleet/internal/remote"
)

// Status is the outcome of a probe. Its numeric value is the exit code
// surfaced to operators.
type Status int

const (
	Running Status = 0
	Down    Status = 1
	Unknown Status = 2
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Worst returns the higher of two statuses, so Unknown dominates Down and
// Down dominates Running.
func Worst(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// Action is a lifecycle verb.
type Action string

const (
	Start   Action = "start"
	Stop    Action = "stop"
	Restart Action = "restart"
	Reload  Action = "reload"
	Probe   Action = "status"
)

// ParseAction validates a user-supplied verb.
func ParseAction(s string) (Action, bool) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case Start, Stop, Restart, Reload, Probe:
		return a, true
	}
	return "", false
}

// commandNotFound is the shell's exit status for a missing command.
const commandNotFound = 127

// Parser turns a probe result into a Status.
type Parser func(res *remote.Result) Status

// ParseSupervised interprets `status <name>` output from an
// upstart-style supervisor.
func ParseSupervised(res *remote.Result) Status {
	switch {
	case res.ExitCode == commandNotFound:
		return Unknown
	case strings.Contains(res.Stdout, "start/running"):
		return Running
	case strings.Contains(res.Stdout, "stop/waiting"):
		return Down
	default:
		return Unknown
	}
}

// ParseInitScript interprets `/etc/init.d/<name> status` output.
func ParseInitScript(res *remote.Result) Status {
	switch {
	case res.ExitCode == commandNotFound:
		return Unknown
	case strings.Contains(res.Stdout, "running") && !strings.Contains(res.Stdout, "not"):
		return Running
	default:
		return Down
	}
}

// legacyProbe covers services whose init script cannot report status.
type legacyProbe struct {
	command string
	token   string
}

var legacyProbes = map[string]legacyProbe{
	"riak": {command: "riak ping", token: "pong"},
}

func parseLegacy(token string) Parser {
	return func(res *remote.Result) Status {
		switch {
		case res.ExitCode == commandNotFound:
			return Unknown
		case strings.Contains(res.Stdout, token):
			return Running
		default:
			return Down
		}
	}
}

// ControlCommand is the shell command that performs action on svc.
// Restart becomes reload for services that support it.
func ControlCommand(svc domain.Service, action Action) string {
	if action == Restart && svc.DoesReload {
		action = Reload
	}
	if svc.Kind == domain.InitScript {
		return "/etc/init.d/" + svc.ServiceName + " " + string(action)
	}
	return string(action) + " " + svc.ServiceName
}

// ProbeCommand returns the status command for svc and the parser for its
// output.
func ProbeCommand(svc domain.Service) (string, Parser) {
	if p, ok := legacyProbes[svc.ServiceName]; ok {
		return p.command, parseLegacy(p.token)
	}
	if svc.Kind == domain.InitScript {
		return "/etc/init.d/" + svc.ServiceName + " status", ParseInitScript
	}
	return "status " + svc.ServiceName, ParseSupervised
}
