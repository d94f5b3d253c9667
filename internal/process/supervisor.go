package process

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"meetpilot/internal/infrastructure/logging"
)

// Supervision timing defaults.
const (
	// defaultGracefulTimeout is how long Cleanup waits after terminate
	// before force-killing.
	defaultGracefulTimeout = 1 * time.Second

	// defaultSweepInterval is the liveness sweep cadence.
	defaultSweepInterval = 1 * time.Second

	// killReapTimeout bounds the wait for a force-killed process to be
	// reaped. A SIGKILL'd process group should exit promptly; if it does
	// not, cleanup logs and moves on to the next process.
	killReapTimeout = 5 * time.Second
)

// supervised is one registry entry: a spawned process, its command line,
// and its exit bookkeeping. Fields behind the supervisor mutex.
type supervised struct {
	name      string
	argv      []string
	cmd       *exec.Cmd
	startedAt time.Time

	// exited closes once the process has been reaped.
	exited chan struct{}

	done         bool // process has exited and been reaped
	exitCode     int  // valid once done
	exitReported bool // sweep already logged this exit
	cleaned      bool // Cleanup has handled this entry
}

// Options configures a Supervisor.
type Options struct {
	// Logger is required.
	Logger *logging.Logger

	// Sink optionally receives classified output lines and exit events.
	Sink Sink

	// GracefulTimeout is how long Cleanup waits between terminate and kill.
	// Zero means the 1-second default.
	GracefulTimeout time.Duration

	// SweepInterval is the liveness sweep cadence. Zero means the 1-second default.
	SweepInterval time.Duration
}

// Supervisor owns a registry of named child processes and their lifecycle:
// start, output relaying, liveness sweeps, and teardown.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Registry mutation is
//     serialised behind a single mutex; contention is negligible at the
//     scale of a handful of processes.
type Supervisor struct {
	logger          *logging.Logger
	sink            Sink
	gracefulTimeout time.Duration
	sweepInterval   time.Duration

	mu    sync.Mutex
	procs map[string]*supervised
	order []string
}

// NewSupervisor creates a supervisor with the given options.
func NewSupervisor(opts Options) *Supervisor {
	if opts.GracefulTimeout == 0 {
		opts.GracefulTimeout = defaultGracefulTimeout
	}
	if opts.SweepInterval == 0 {
		opts.SweepInterval = defaultSweepInterval
	}

	return &Supervisor{
		logger:          opts.Logger,
		sink:            opts.Sink,
		gracefulTimeout: opts.GracefulTimeout,
		sweepInterval:   opts.SweepInterval,
		procs:           make(map[string]*supervised),
	}
}

// Start spawns the command line as a supervised process registered under name.
//
// The process gets its own process group so teardown can signal it together
// with any children it forks. Two relay goroutines consume its stdout and
// stderr, and a reaper goroutine records its exit status once both streams
// close.
//
// Parameters:
//   - name: Unique registry key. Starting a second process under an
//     existing name returns ErrAlreadyRegistered.
//   - argv: Full command line, argv[0] being the binary.
//
// Returns:
//   - error: Spawn failure (nothing is registered) or a duplicate name.
//     A spawn failure is fatal for this process only; the supervisor and
//     any already-running processes are unaffected.
func (s *Supervisor) Start(name string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyCommand, name)
	}

	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // Command lines come from validated config templates
	// Own process group, so Cleanup can signal forked children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe for %s: %w", name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("creating stderr pipe for %s: %w", name, err)
	}

	// Reserve the registry slot before spawning so a concurrent Start with
	// the same name cannot race past the uniqueness check.
	p := &supervised{
		name:   name,
		argv:   argv,
		cmd:    cmd,
		exited: make(chan struct{}),
	}

	s.mu.Lock()
	if _, exists := s.procs[name]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	s.procs[name] = p
	s.order = append(s.order, name)
	s.mu.Unlock()

	if err := cmd.Start(); err != nil {
		s.unregister(name)
		return fmt.Errorf("starting %s: %w", name, err)
	}

	s.mu.Lock()
	p.startedAt = time.Now()
	s.mu.Unlock()

	// One relay per stream, fire-and-forget. They terminate naturally when
	// the process exits and its pipes close.
	var relays sync.WaitGroup
	relays.Add(2)
	go func() {
		defer relays.Done()
		NewRelay(name, "stdout", s.logger, s.sink).Run(stdout)
	}()
	go func() {
		defer relays.Done()
		NewRelay(name, "stderr", s.logger, s.sink).Run(stderr)
	}()
	go s.reap(p, &relays)

	s.logger.Info("process started",
		"name", name,
		"pid", cmd.Process.Pid,
		"command", argv,
	)

	return nil
}

// unregister removes a registry entry after a failed spawn.
func (s *Supervisor) unregister(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.procs, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// reap waits for both relays to drain, then collects the process exit
// status. Wait must not run before the pipes are drained, or the relays
// would race a closed file.
func (s *Supervisor) reap(p *supervised, relays *sync.WaitGroup) {
	relays.Wait()
	err := p.cmd.Wait()

	s.mu.Lock()
	p.done = true
	p.exitCode = p.cmd.ProcessState.ExitCode()
	s.mu.Unlock()
	close(p.exited)

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// Wait itself failed; the exit status may be unreliable.
			s.logger.Warn("reaping process failed", "name", p.name, "error", err)
		}
	}
}

// SweepLiveness polls every registered process for exit on a fixed cadence
// until ctx is cancelled. A process found exited is logged once at warning
// severity with its exit code; the supervisor never restarts it.
//
// The sweep blocks and is expected to run on its own goroutine. Errors in
// a sweep iteration are contained: the loop always continues to the next tick.
func (s *Supervisor) SweepLiveness(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("liveness sweep stopped")
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep performs one liveness pass. A panic here must not take the
// supervisor down, so it is absorbed and logged.
func (s *Supervisor) sweep() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("error monitoring processes", "error", r)
		}
	}()

	type exit struct {
		name string
		code int
	}

	s.mu.Lock()
	var exits []exit
	for _, name := range s.order {
		p := s.procs[name]
		if p.done && !p.exitReported {
			p.exitReported = true
			exits = append(exits, exit{name: p.name, code: p.exitCode})
		}
	}
	s.mu.Unlock()

	for _, e := range exits {
		s.logger.Warn("process exited",
			"name", e.name,
			"exit_code", e.code,
		)
		if s.sink != nil {
			s.sink.ProcessExited(e.name, e.code)
		}
	}
}

// Cleanup terminates every registered process in start order.
//
// Per process: request graceful termination of its process group, wait up
// to the graceful timeout, then force-kill if it is still running. A
// failure tearing down one process is logged and does not abort cleanup of
// the others.
//
// Cleanup is idempotent: calling it twice, or calling it when processes
// have already exited on their own, performs no further work and raises
// nothing.
func (s *Supervisor) Cleanup() {
	s.mu.Lock()
	names := append([]string(nil), s.order...)
	s.mu.Unlock()

	for _, name := range names {
		s.terminate(name)
	}

	s.logger.Success("cleanup completed")
}

// terminate tears down a single process: SIGTERM the group, wait, SIGKILL
// if needed. Already-exited and already-cleaned entries are no-ops.
func (s *Supervisor) terminate(name string) {
	s.mu.Lock()
	p := s.procs[name]
	if p == nil || p.cleaned {
		s.mu.Unlock()
		return
	}
	p.cleaned = true
	alreadyDone := p.done
	s.mu.Unlock()

	if alreadyDone {
		s.logger.Info("process already exited", "name", name)
		return
	}

	s.logger.Info("terminating process", "name", name)

	pid := p.cmd.Process.Pid
	// Negative PID signals the whole process group (created via Setpgid).
	if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Error("error terminating process", "name", name, "error", err)
	}

	select {
	case <-p.exited:
		s.logger.Success("process terminated successfully", "name", name)
		return
	case <-time.After(s.gracefulTimeout):
	}

	s.logger.Warn("graceful shutdown timeout, killing process", "name", name)

	if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		s.logger.Error("error killing process", "name", name, "error", err)
		return
	}

	select {
	case <-p.exited:
		s.logger.Success("process killed", "name", name)
	case <-time.After(killReapTimeout):
		s.logger.Error("process did not exit after kill", "name", name)
	}
}

// Stats describes the current state of one supervised process.
type Stats struct {
	Name      string    `json:"name"`
	PID       int       `json:"pid,omitempty"`
	Running   bool      `json:"running"`
	StartedAt time.Time `json:"started_at"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	CleanedUp bool      `json:"cleaned_up"`
}

// Status returns the state of a single process.
//
// Returns:
//   - Stats: Snapshot of the process state
//   - error: ErrNotRegistered if the name is unknown
func (s *Supervisor) Status(name string) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.procs[name]
	if !ok {
		return Stats{}, fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	return s.statsLocked(p), nil
}

// List returns stats for every registered process, in start order.
func (s *Supervisor) List() []Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]Stats, 0, len(s.order))
	for _, name := range s.order {
		stats = append(stats, s.statsLocked(s.procs[name]))
	}
	return stats
}

// Count returns the number of registered processes.
func (s *Supervisor) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.procs)
}

// statsLocked builds a Stats snapshot. Caller holds s.mu.
func (s *Supervisor) statsLocked(p *supervised) Stats {
	st := Stats{
		Name:      p.name,
		Running:   !p.done,
		StartedAt: p.startedAt,
		CleanedUp: p.cleaned,
	}
	if p.done {
		code := p.exitCode
		st.ExitCode = &code
	} else if p.cmd.Process != nil {
		st.PID = p.cmd.Process.Pid
	}
	return st
}
