// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/bureau-foundation/alpack/sandbox"
)

// forwardedSignals are caught for the whole session so the supervisor
// survives long enough to collect the child.
var forwardedSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}

// shouldForward decides whether sig is relayed to the child. An
// interactive child shares the terminal's process group and already
// receives SIGINT and SIGQUIT from the tty driver.
func shouldForward(sig syscall.Signal, interactive bool) bool {
	if interactive {
		return sig == syscall.SIGTERM || sig == syscall.SIGHUP
	}
	return true
}

// InterruptedError reports a signal that arrived after the lock was taken
// but before any child was started. No child ran.
type InterruptedError struct {
	Signal syscall.Signal
}

func (err *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted by %s before launch", err.Signal)
}

// pending returns a signal already queued on signals without blocking.
func pending(signals <-chan os.Signal) (syscall.Signal, bool) {
	for {
		select {
		case received, open := <-signals:
			if !open {
				return 0, false
			}
			if sig, ok := received.(syscall.Signal); ok {
				return sig, true
			}
		default:
			return 0, false
		}
	}
}

type waited struct {
	state *os.ProcessState
	err   error
}

// wait blocks until the child exits, relaying signals and turning context
// cancellation into SIGTERM followed by SIGKILL after the grace period.
func (s *Supervisor) wait(ctx context.Context, current *session, child *sandbox.Child, signals <-chan os.Signal, interactive bool) (*os.ProcessState, error) {
	exited := make(chan waited, 1)
	go func() {
		state, err := child.Wait()
		exited <- waited{state: state, err: err}
	}()

	cancelled := ctx.Done()
	var killTimer <-chan time.Time
	for {
		select {
		case result := <-exited:
			return result.state, result.err

		case received := <-signals:
			sig, ok := received.(syscall.Signal)
			if !ok || !shouldForward(sig, interactive) {
				continue
			}
			current.logger.Debug("forwarding signal", "signal", sig)
			if err := child.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
				current.logger.Warn("forwarding signal", "signal", sig, "error", err)
			}

		case <-cancelled:
			cancelled = nil
			current.logger.Info("cancelled, terminating child", "grace", s.killGrace)
			if err := child.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
				current.logger.Warn("terminating child", "error", err)
			}
			killTimer = s.clock.After(s.killGrace)

		case <-killTimer:
			killTimer = nil
			current.logger.Warn("child ignored SIGTERM, killing")
			if err := child.Signal(syscall.SIGKILL); err != nil && !errors.Is(err, os.ErrProcessDone) {
				current.logger.Warn("killing child", "error", err)
			}
		}
	}
}
