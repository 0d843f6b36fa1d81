// Package command runs external processes for pipeline steps.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Command describes one external process invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Env    []string // appended to the parent environment
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes commands. Implementations must block until the process exits.
type Runner interface {
	Run(ctx context.Context, c Command) error
}

// ExitError reports a process that ran but exited non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Command, e.Code)
}

// Exec runs commands with os/exec.
type Exec struct {
	Log *logrus.Entry
}

// Run starts the process and waits for it. A non-zero exit is returned as
// *ExitError; failure to start is returned as-is.
func (x *Exec) Run(ctx context.Context, c Command) error {
	if x.Log != nil {
		x.Log.WithField("dir", c.Dir).Debugf("exec: %s", c)
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExitError{Command: c.String(), Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("running %s: %w", c.Name, err)
	}
	return nil
}

// LookPath reports the resolved path of an executable, or "" if not found.
func LookPath(name string) string {
	p, err := exec.LookPath(name)
	if err != nil {
		return ""
	}
	return p
}
