// Package southbound defines the device client used to reach VPP. Every
// transport presents the same contract: raw command execution plus typed
// state reads that return identical record shapes.
package southbound

import (
	"context"
	"errors"
	"fmt"

	"github.com/veesix-networks/vppifd/pkg/command"
	"github.com/veesix-networks/vppifd/pkg/models"
)

var (
	ErrUnavailable   = errors.New("southbound dataplane unavailable")
	ErrNotConnected  = errors.New("southbound not connected")
	ErrCommandFailed = command.ErrCommandFailed
)

type Executor interface {
	// Exec runs one command line. The raw output is returned even when err
	// is non-nil so callers can log what the device printed.
	Exec(ctx context.Context, line string) (string, error)
}

type StateReader interface {
	Interfaces(ctx context.Context) ([]models.Interface, error)
	Bonds(ctx context.Context) ([]models.Bond, error)
	LcpPairs(ctx context.Context) ([]models.LcpPair, error)
}

type Client interface {
	Executor
	StateReader

	Connect(ctx context.Context) error
	Disconnect() error
	// Reconnect is a no-op when already connected.
	Reconnect(ctx context.Context) error
	IsConnected() bool
	Transport() string
}

// CommandError reports a command the device rejected, either by exit status
// or by an error marker in its output.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("command %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("command %q failed", e.Command)
}

func (e *CommandError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCommandFailed}
	}
	return []error{ErrCommandFailed, e.Err}
}

// Run executes cmd and applies its success check to the output.
func Run(ctx context.Context, e Executor, cmd command.Command) (string, error) {
	out, err := e.Exec(ctx, cmd.Line)
	if err != nil {
		var cerr *CommandError
		if errors.As(err, &cerr) {
			return out, err
		}
		if errors.Is(err, ErrNotConnected) || errors.Is(err, ErrUnavailable) {
			return out, err
		}
		return out, &CommandError{Command: cmd.Line, Output: out, Err: err}
	}
	if err := cmd.Verify(out); err != nil {
		return out, &CommandError{Command: cmd.Line, Output: out, Err: err}
	}
	return out, nil
}

// IsConnectionError reports whether err means the device could not be
// reached at all, as opposed to rejecting a command.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrNotConnected) || errors.Is(err, ErrUnavailable)
}

// IsRetryable reports whether err proves the command never reached the
// device. A command that was handed over and then timed out or lost its
// session may have run, so it is wrapped in a CommandError and never
// qualifies.
func IsRetryable(err error) bool {
	if !IsConnectionError(err) {
		return false
	}
	var cerr *CommandError
	if errors.As(err, &cerr) {
		return false
	}
	return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}
