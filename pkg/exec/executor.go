package exec

import (
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultMaxOutput = 1024 * 1024
	DefaultKillGrace = 2 * time.Second

	// TruncatedMarker is appended to output that hit the size cap.
	TruncatedMarker = "\n[output truncated]"
)

type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
	StatusTimedOut Status = "timed_out"
)

// Outcome is the result of running one sanitized command.
type Outcome struct {
	Status Status
	// Output is the combined stdout and stderr captured so far.
	Output    string
	Error     string
	ExitCode  int
	Truncated bool
	// Terminated reports whether a timed-out child was seen to exit after
	// being signalled. False means the process may still be running.
	Terminated bool
	Duration   time.Duration
}

// Text renders the outcome the way terminal clients display it.
func (o Outcome) Text() string {
	if o.Status == StatusSuccess {
		return o.Output
	}
	return fmt.Sprintf("Error: %s\n%s", o.Error, o.Output)
}

// Executor runs one command per call under a wall-clock deadline and an
// output cap. The zero value uses the defaults above and DefaultShell.
type Executor struct {
	Timeout     time.Duration
	MaxOutput   int
	KillGrace   time.Duration
	Interpreter Interpreter

	logger *slog.Logger
}

func (e *Executor) SetLogger(logger *slog.Logger) {
	e.logger = logger
}

// Execute runs command to completion or until the timeout fires. It never
// blocks longer than Timeout plus three kill grace periods and never retries.
func (e *Executor) Execute(command string) Outcome {
	if command == "" {
		return Outcome{Status: StatusSuccess}
	}

	timeout := e.timeout()
	grace := e.killGrace()
	buf := newBoundedBuffer(e.maxOutput())

	cmd := e.interpreter().Command(command)
	cmd.Stdout = buf
	cmd.Stderr = buf
	cmd.WaitDelay = grace
	setProcessGroup(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		e.logWarn("command_spawn_failed", "command", command, "error", err)
		return Outcome{Status: StatusFailure, Error: err.Error(), ExitCode: -1}
	}
	pid := cmd.Process.Pid
	e.logDebug("command_started", "command", command, "pid", pid)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return e.finished(err, buf, start)
	case <-timer.C:
	}

	terminated := e.terminate(cmd, done, grace)
	out := Outcome{
		Status:     StatusTimedOut,
		Output:     captured(buf),
		Error:      fmt.Sprintf("command timed out after %s", timeout),
		ExitCode:   -1,
		Truncated:  buf.Truncated(),
		Terminated: terminated,
		Duration:   time.Since(start),
	}
	if terminated {
		e.logInfo("command_timed_out", "command", command, "pid", pid, "timeout", timeout)
	} else {
		e.logWarn("command_exit_unconfirmed", "command", command, "pid", pid, "timeout", timeout)
	}
	return out
}

// terminate signals the process group, escalating to SIGKILL, and reports
// whether the child was observed to exit.
func (e *Executor) terminate(cmd *exec.Cmd, done <-chan error, grace time.Duration) bool {
	if err := signalGroup(cmd.Process, false); err != nil {
		e.logDebug("command_signal_failed", "pid", cmd.Process.Pid, "error", err)
	}
	if waitFor(done, grace) {
		return true
	}
	if err := signalGroup(cmd.Process, true); err != nil {
		e.logDebug("command_kill_failed", "pid", cmd.Process.Pid, "error", err)
	}
	// Wait only returns WaitDelay after the exit when a process outside the
	// group still holds the pipes, so this wait must outlast WaitDelay.
	return waitFor(done, 2*grace)
}

func (e *Executor) finished(err error, buf *boundedBuffer, start time.Time) Outcome {
	out := Outcome{
		Status:    StatusSuccess,
		Output:    captured(buf),
		Truncated: buf.Truncated(),
		Duration:  time.Since(start),
	}
	// ErrWaitDelay only means a descendant kept the pipes open after a clean exit.
	if err == nil || errors.Is(err, exec.ErrWaitDelay) {
		return out
	}
	out.Status = StatusFailure
	out.Error = err.Error()
	out.ExitCode = -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
	}
	return out
}

func captured(buf *boundedBuffer) string {
	if buf.Truncated() {
		return buf.String() + TruncatedMarker
	}
	return buf.String()
}

func waitFor(done <-chan error, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

func (e *Executor) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

func (e *Executor) maxOutput() int {
	if e.MaxOutput > 0 {
		return e.MaxOutput
	}
	return DefaultMaxOutput
}

func (e *Executor) killGrace() time.Duration {
	if e.KillGrace > 0 {
		return e.KillGrace
	}
	return DefaultKillGrace
}

func (e *Executor) interpreter() Interpreter {
	if e.Interpreter != nil {
		return e.Interpreter
	}
	return DefaultShell()
}

func (e *Executor) logDebug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Executor) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Executor) logWarn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}
