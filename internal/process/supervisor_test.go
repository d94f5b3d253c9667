package process

import (
	"context"
	"errors"
	"testing"
	"time"
)

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

func newTestSupervisor(opts Options) *Supervisor {
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	return NewSupervisor(opts)
}

func TestStart_EmptyCommand(t *testing.T) {
	s := newTestSupervisor(Options{})

	err := s.Start("bot", nil)
	if !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Start() error = %v, want ErrEmptyCommand", err)
	}
}

func TestStart_DuplicateName(t *testing.T) {
	s := newTestSupervisor(Options{})
	defer s.Cleanup()

	if err := s.Start("bot", []string{"/bin/sleep", "60"}); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	err := s.Start("bot", []string{"/bin/sleep", "60"})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRegistered", err)
	}
	if s.Count() != 1 {
		t.Errorf("Count() = %d, want 1", s.Count())
	}
}

func TestStart_InvalidBinary(t *testing.T) {
	s := newTestSupervisor(Options{})

	err := s.Start("bot", []string{"/nonexistent/binary"})
	if err == nil {
		t.Fatal("Start() with invalid binary expected error, got nil")
	}

	// A failed spawn must leave nothing registered.
	if s.Count() != 0 {
		t.Errorf("Count() = %d after failed spawn, want 0", s.Count())
	}
	if _, err := s.Status("bot"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("Status() error = %v, want ErrNotRegistered", err)
	}
}

func TestSupervisor_ReapsExitedProcess(t *testing.T) {
	s := newTestSupervisor(Options{})

	if err := s.Start("echo", []string{"/bin/echo", "hello"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		st, err := s.Status("echo")
		return err == nil && !st.Running
	}, "echo process reaped")

	st, err := s.Status("echo")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.ExitCode == nil || *st.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", st.ExitCode)
	}
}

func TestSweep_ReportsExitExactlyOnce(t *testing.T) {
	sink := &recordingSink{}
	s := newTestSupervisor(Options{Sink: sink})

	if err := s.Start("failer", []string{"/bin/sh", "-c", "exit 3"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		st, err := s.Status("failer")
		return err == nil && !st.Running
	}, "failer process reaped")

	// The sweep only logs; the supervisor itself must keep running and a
	// later Cleanup must still succeed for the already-exited child.
	s.sweep()
	s.sweep()

	exits := sink.recordedExits()
	if len(exits) != 1 {
		t.Fatalf("sink received %d exit events, want exactly 1: %v", len(exits), exits)
	}
	if exits[0].name != "failer" || exits[0].code != 3 {
		t.Errorf("exit event = %+v, want {failer 3}", exits[0])
	}

	s.Cleanup()
	st, err := s.Status("failer")
	if err != nil {
		t.Fatalf("Status() after Cleanup error = %v", err)
	}
	if !st.CleanedUp {
		t.Error("CleanedUp = false after Cleanup()")
	}
}

func TestSweepLiveness_StopsOnCancel(t *testing.T) {
	s := newTestSupervisor(Options{SweepInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.SweepLiveness(ctx)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("SweepLiveness did not stop after context cancellation")
	}
}

func TestCleanup_TerminatesRunningProcesses(t *testing.T) {
	s := newTestSupervisor(Options{GracefulTimeout: 2 * time.Second})

	if err := s.Start("bot", []string{"/bin/sleep", "60"}); err != nil {
		t.Fatalf("Start(bot) error = %v", err)
	}
	if err := s.Start("meeting", []string{"/bin/sleep", "60"}); err != nil {
		t.Fatalf("Start(meeting) error = %v", err)
	}

	s.Cleanup()

	for _, st := range s.List() {
		if st.Running {
			t.Errorf("process %s still running after Cleanup()", st.Name)
		}
		if !st.CleanedUp {
			t.Errorf("process %s not marked cleaned up", st.Name)
		}
	}
}

func TestCleanup_Idempotent(t *testing.T) {
	s := newTestSupervisor(Options{GracefulTimeout: 2 * time.Second})

	if err := s.Start("bot", []string{"/bin/sleep", "60"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	s.Cleanup()
	first := s.List()

	// Second call must raise nothing and leave the registry in the same
	// terminal state.
	s.Cleanup()
	second := s.List()

	if len(first) != len(second) {
		t.Fatalf("registry size changed across Cleanup calls: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Name != second[i].Name ||
			first[i].Running != second[i].Running ||
			first[i].CleanedUp != second[i].CleanedUp {
			t.Errorf("registry entry %d changed: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestCleanup_AlreadyExitedProcess(t *testing.T) {
	s := newTestSupervisor(Options{})

	if err := s.Start("echo", []string{"/bin/echo", "done"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		st, err := s.Status("echo")
		return err == nil && !st.Running
	}, "echo process reaped")

	// Cleaning up a child that exited on its own is a no-op, not an error.
	s.Cleanup()

	st, err := s.Status("echo")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !st.CleanedUp {
		t.Error("CleanedUp = false, want true")
	}
}

func TestCleanup_KillsStubbornProcess(t *testing.T) {
	s := newTestSupervisor(Options{GracefulTimeout: 200 * time.Millisecond})

	// A process that ignores SIGTERM must be force-killed after the
	// graceful timeout.
	if err := s.Start("stubborn", []string{"/bin/sh", "-c", "trap '' TERM; sleep 60"}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Give the shell a moment to install the trap.
	time.Sleep(100 * time.Millisecond)

	start := time.Now()
	s.Cleanup()
	elapsed := time.Since(start)

	st, err := s.Status("stubborn")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Running {
		t.Error("stubborn process still running after Cleanup()")
	}
	if elapsed > 10*time.Second {
		t.Errorf("Cleanup() took %v, expected the kill path well under the reap timeout", elapsed)
	}
}

func TestCleanup_PartialFailureIsolation(t *testing.T) {
	s := newTestSupervisor(Options{GracefulTimeout: 2 * time.Second})

	if err := s.Start("first", []string{"/bin/echo", "gone"}); err != nil {
		t.Fatalf("Start(first) error = %v", err)
	}
	if err := s.Start("second", []string{"/bin/sleep", "60"}); err != nil {
		t.Fatalf("Start(second) error = %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		st, err := s.Status("first")
		return err == nil && !st.Running
	}, "first process reaped")

	// The already-exited first entry must not prevent teardown of the second.
	s.Cleanup()

	st, err := s.Status("second")
	if err != nil {
		t.Fatalf("Status(second) error = %v", err)
	}
	if st.Running {
		t.Error("second process still running after Cleanup()")
	}
}

func TestList_PreservesStartOrder(t *testing.T) {
	s := newTestSupervisor(Options{})
	defer s.Cleanup()

	if err := s.Start("bot", []string{"/bin/sleep", "60"}); err != nil {
		t.Fatalf("Start(bot) error = %v", err)
	}
	if err := s.Start("meeting", []string{"/bin/sleep", "60"}); err != nil {
		t.Fatalf("Start(meeting) error = %v", err)
	}

	stats := s.List()
	if len(stats) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(stats))
	}
	if stats[0].Name != "bot" || stats[1].Name != "meeting" {
		t.Errorf("List() order = [%s %s], want [bot meeting]", stats[0].Name, stats[1].Name)
	}
	if stats[0].PID == 0 {
		t.Error("running process has PID 0")
	}
}
