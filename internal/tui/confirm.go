// Package tui holds the small interactive pieces fleet uses: confirmation
// prompts and spinners around long remote operations.
package tui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"
	"golang.org/x/term"
)

// ErrAborted is returned when the operator declines a confirmation.
var ErrAborted = errors.New("aborted")

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

func accessible() bool {
	return os.Getenv("ACCESSIBLE") != ""
}

// Confirm asks a yes/no question. assumeYes skips the prompt. Without a
// terminal there is nobody to ask, so the answer is no.
func Confirm(title, description string, assumeYes bool) error {
	if assumeYes {
		return nil
	}
	if !IsInteractive() {
		return fmt.Errorf("%w: %s (pass --yes to run without a terminal)", ErrAborted, title)
	}

	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	)).WithAccessible(accessible()).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrAborted
	}
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}

// Spin runs action behind a spinner on out when attached to a terminal,
// and plainly otherwise.
func Spin(out io.Writer, title string, action func() error) error {
	if !IsInteractive() {
		return action()
	}
	var actionErr error
	err := spinner.New().
		Title(title).
		Accessible(accessible()).
		Output(out).
		Action(func() { actionErr = action() }).
		Run()
	if err != nil {
		return err
	}
	return actionErr
}
