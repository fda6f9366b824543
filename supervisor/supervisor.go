// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/bureau-foundation/alpack/lib/clock"
	"github.com/bureau-foundation/alpack/lib/process"
	"github.com/bureau-foundation/alpack/sandbox"
)

// DefaultKillGrace is how long a cancelled child has between SIGTERM and
// SIGKILL.
const DefaultKillGrace = 5 * time.Second

// Locker is the part of the rootfs store a session needs.
type Locker interface {
	Lock(name string, pid int) error
	Unlock(name string) error
	Touch(name string) error
}

// Result is the outcome of one supervised execution.
type Result struct {
	// ExitCode is the child's exit status, or 128+signal when a signal
	// terminated it.
	ExitCode int

	// Signal is the terminating signal, zero for a normal exit.
	Signal syscall.Signal

	Duration time.Duration
}

// Success reports a zero exit without a signal.
func (r Result) Success() bool {
	return r.ExitCode == 0 && r.Signal == 0
}

func (r Result) String() string {
	if r.Signal != 0 {
		return fmt.Sprintf("killed by %s (exit %d) after %s", r.Signal, r.ExitCode, r.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("exit %d after %s", r.ExitCode, r.Duration.Round(time.Millisecond))
}

// Config holds the collaborators shared by every session.
type Config struct {
	Store   Locker
	Backend sandbox.Backend

	// Clock measures durations and times the kill grace period.
	// Defaults to the real clock.
	Clock clock.Clock

	// KillGrace defaults to DefaultKillGrace.
	KillGrace time.Duration

	Logger *slog.Logger
}

// Request describes one execution.
type Request struct {
	Instance string
	Plan     sandbox.Plan
	Sandbox  sandbox.Config
	Command  string
	Args     []string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Interactive overrides terminal detection on Stdin.
	Interactive *bool

	// Signals replaces the process's own signal subscription. Tests feed
	// it directly.
	Signals <-chan os.Signal

	// OnTransition observes every state change.
	OnTransition func(from, to State)
}

// Supervisor runs sessions against one store and backend.
type Supervisor struct {
	store     Locker
	backend   sandbox.Backend
	clock     clock.Clock
	killGrace time.Duration
	logger    *slog.Logger
}

// New validates config and returns a Supervisor.
func New(config Config) (*Supervisor, error) {
	if config.Store == nil {
		return nil, errors.New("supervisor: store is required")
	}
	if config.Backend == nil {
		return nil, errors.New("supervisor: backend is required")
	}
	s := &Supervisor{
		store:     config.Store,
		backend:   config.Backend,
		clock:     config.Clock,
		killGrace: config.KillGrace,
		logger:    config.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.killGrace <= 0 {
		s.killGrace = DefaultKillGrace
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// session is one pass through the lifecycle.
type session struct {
	id      string
	state   State
	observe func(from, to State)
	logger  *slog.Logger
}

func (s *session) transition(to State) error {
	if !allowed(s.state, to) {
		return &TransitionError{From: s.state, To: to}
	}
	from := s.state
	s.state = to
	s.logger.Debug("session transition", "from", from, "to", to)
	if s.observe != nil {
		s.observe(from, to)
	}
	return nil
}

// fail moves the session to Failed and returns err unchanged.
func (s *session) fail(err error) error {
	if !s.state.Terminal() {
		s.transition(Failed)
	}
	return err
}

// Run executes request.Command under the rootfs lock. The lock is held
// from Locking until the child has been collected and is released exactly
// once on every path out of Run. A child that exits non-zero or is killed
// is not an error: the Result carries its status.
func (s *Supervisor) Run(ctx context.Context, request Request) (Result, error) {
	current := &session{
		id:      uuid.NewString(),
		state:   Idle,
		observe: request.OnTransition,
	}
	current.logger = s.logger.With(
		"session", current.id,
		"instance", request.Instance,
		"backend", s.backend.Kind(),
	)

	// Subscribed before the lock is taken so a signal arriving between
	// Lock and Launch cannot kill the supervisor with the lock held.
	signals := request.Signals
	if signals == nil {
		subscribed := make(chan os.Signal, 4)
		signal.Notify(subscribed, forwardedSignals...)
		defer signal.Stop(subscribed)
		signals = subscribed
	}
	interactive := isInteractive(request)

	if err := current.transition(Locking); err != nil {
		return Result{}, err
	}
	if err := s.store.Lock(request.Instance, os.Getpid()); err != nil {
		return Result{}, current.fail(err)
	}
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := s.store.Unlock(request.Instance); err != nil {
			current.logger.Error("releasing rootfs lock", "error", err)
		}
	}
	defer release()

	if err := current.transition(Launching); err != nil {
		return Result{}, current.fail(err)
	}
	spec, err := s.backend.Prepare(request.Plan, request.Sandbox)
	if err != nil {
		return Result{}, current.fail(fmt.Errorf("preparing %s invocation: %w", s.backend.Kind(), err))
	}

	if received, ok := pending(signals); ok {
		current.logger.Info("interrupted before launch", "signal", received)
		return Result{}, current.fail(&InterruptedError{Signal: received})
	}

	child, err := s.backend.Launch(ctx, spec, request.Command, request.Args, sandbox.LaunchOptions{
		Stdin:  request.Stdin,
		Stdout: request.Stdout,
		Stderr: request.Stderr,
		// An interactive child stays in the terminal's foreground group
		// so job control and ^C reach it directly.
		NewProcessGroup: !interactive,
	})
	if err != nil {
		return Result{}, current.fail(err)
	}

	if err := current.transition(Running); err != nil {
		return Result{}, current.fail(err)
	}
	started := s.clock.Now()
	current.logger.Info("running",
		"command", request.Command,
		"pid", child.PID(),
		"interactive", interactive,
	)

	state, waitErr := s.wait(ctx, current, child, signals, interactive)

	if err := current.transition(Collecting); err != nil {
		return Result{}, current.fail(err)
	}
	code, sig := process.ExitStatus(state)
	result := Result{ExitCode: code, Signal: sig, Duration: s.clock.Since(started)}
	release()
	if err := s.store.Touch(request.Instance); err != nil {
		current.logger.Warn("updating last-used time", "error", err)
	}
	if waitErr != nil {
		return result, current.fail(fmt.Errorf("waiting for child: %w", waitErr))
	}

	current.logger.Info("finished", "exit_code", result.ExitCode, "signal", result.Signal, "duration", result.Duration)
	if err := current.transition(Done); err != nil {
		return result, err
	}
	return result, nil
}

func isInteractive(request Request) bool {
	if request.Interactive != nil {
		return *request.Interactive
	}
	file, ok := request.Stdin.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
