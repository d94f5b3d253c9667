package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meetpilot/internal/infrastructure/config"
	"meetpilot/internal/infrastructure/logging"
	"meetpilot/internal/persona"
	"meetpilot/internal/process"
)

// State identifies where the driver is in its lifecycle.
type State string

// Driver states, in order of progression. ShuttingDown is reachable from
// Starting (spawn failure) as well as Running (shutdown signal).
const (
	StateIdle             State = "idle"
	StatePersonaResolving State = "persona_resolving"
	StateStarting         State = "starting"
	StateRunning          State = "running"
	StateShuttingDown     State = "shutting_down"
	StateDone             State = "done"
)

// Registry names for the two supervised processes.
const (
	ProcessBot     = "bot"
	ProcessMeeting = "meeting"
)

// Domain errors for the session package.
var (
	// ErrInvalidMeetingURL is returned when a meeting URL does not carry
	// the required prefix.
	ErrInvalidMeetingURL = errors.New("session: invalid meeting url")

	// ErrMeetingURLRequired is returned when no meeting URL was supplied
	// and no interactive input is available to prompt for one.
	ErrMeetingURLRequired = errors.New("session: meeting url required")
)

// Deps holds the dependencies required by the session driver.
type Deps struct {
	Config     *config.Config
	Logger     *logging.Logger
	Supervisor *process.Supervisor
	Personas   *persona.Manager

	// PersonaName is the explicitly requested persona. Empty selects one
	// uniformly at random.
	PersonaName string

	// MeetingURL is the meeting to join. Empty triggers an interactive
	// prompt when Input is set, and a fatal error otherwise.
	MeetingURL string

	// Port is handed to the bot process. Zero means the configured default.
	Port int

	// Input is the interactive source for prompting (usually os.Stdin).
	// Nil means non-interactive: missing input becomes a fatal error.
	Input io.Reader

	// Output is where prompts are written. Nil means os.Stdout.
	Output io.Writer
}

// Driver is the top-level session flow.
//
// Thread Safety:
//   - Run is single-use and must be called from one goroutine. ID, State,
//     and PersonaName are safe to call concurrently (they back the status API).
type Driver struct {
	cfg        *config.Config
	logger     *logging.Logger
	supervisor *process.Supervisor
	personas   *persona.Manager

	requested  string
	meetingURL string
	port       int
	input      io.Reader
	output     io.Writer

	id string

	mu       sync.RWMutex
	state    State
	selected *persona.Persona
}

// New creates a session driver with the given dependencies.
//
// Parameters:
//   - deps: Required dependencies (config, logger, supervisor, personas)
//
// Returns:
//   - *Driver: Driver in the Idle state
//   - error: If required dependencies are missing
func New(deps Deps) (*Driver, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Supervisor == nil {
		return nil, fmt.Errorf("supervisor is required")
	}
	if deps.Personas == nil {
		return nil, fmt.Errorf("persona manager is required")
	}

	if deps.Output == nil {
		deps.Output = os.Stdout
	}
	if deps.Port == 0 {
		deps.Port = deps.Config.Session.DefaultPort
	}

	return &Driver{
		cfg:        deps.Config,
		logger:     deps.Logger,
		supervisor: deps.Supervisor,
		personas:   deps.Personas,
		requested:  deps.PersonaName,
		meetingURL: deps.MeetingURL,
		port:       deps.Port,
		input:      deps.Input,
		output:     deps.Output,
		id:         uuid.NewString(),
		state:      StateIdle,
	}, nil
}

// ID returns the unique identifier for this session.
func (d *Driver) ID() string {
	return d.id
}

// State returns the driver's current lifecycle state.
func (d *Driver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// PersonaName returns the resolved persona name, or empty before resolution.
func (d *Driver) PersonaName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.selected == nil {
		return ""
	}
	return d.selected.Name
}

// setState records a lifecycle transition.
func (d *Driver) setState(state State) {
	d.mu.Lock()
	d.state = state
	d.mu.Unlock()
	d.logger.Debug("session state changed", "session_id", d.id, "state", string(state))
}

// Run executes the session from persona resolution through teardown.
//
// It blocks until ctx is cancelled (the shutdown signal) or a fatal
// startup error occurs. Whatever was started is always cleaned up before
// Run returns; the driver always finishes in the Done state.
//
// Parameters:
//   - ctx: Cancelled by OS signals or the caller to request shutdown
//
// Returns:
//   - error: nil on a clean signal-driven shutdown, otherwise the fatal
//     startup error (caller maps this to exit code 1)
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("starting session", "session_id", d.id)
	d.setState(StatePersonaResolving)

	meetingURL, err := d.resolveMeetingURL()
	if err != nil {
		d.setState(StateDone)
		return err
	}

	selected, err := d.personas.Select(ctx, d.requested)
	if err != nil {
		// Fatal before anything is spawned.
		d.setState(StateDone)
		return fmt.Errorf("resolving persona: %w", err)
	}

	d.mu.Lock()
	d.selected = selected
	d.mu.Unlock()

	d.logger.Info("selected persona",
		"name", selected.Name,
		"prompt", selected.Prompt,
	)

	d.setState(StateStarting)

	if err := d.supervisor.Start(ProcessBot, d.botCommand(selected)); err != nil {
		d.logger.Error("failed to start bot", "error", err)
		d.shutdown()
		return fmt.Errorf("starting bot: %w", err)
	}

	// Give the bot a moment to bind its port before the coordinator
	// connects to it.
	select {
	case <-ctx.Done():
		d.shutdown()
		return nil
	case <-time.After(d.cfg.GetStartupGrace()):
	}

	if err := d.supervisor.Start(ProcessMeeting, d.meetingCommand(meetingURL, selected.Name)); err != nil {
		d.logger.Error("failed to start meeting", "error", err)
		d.shutdown()
		return fmt.Errorf("starting meeting: %w", err)
	}

	d.logger.Success("bot and meeting processes started", "session_id", d.id)
	d.logger.Info("press Ctrl+C to stop all processes")
	d.setState(StateRunning)

	// Liveness sweep runs concurrently until shutdown; the blocked wait
	// below is the main flow's only suspension point.
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		d.supervisor.SweepLiveness(ctx)
	}()

	<-ctx.Done()

	d.setState(StateShuttingDown)
	d.logger.Info("shutdown signal received")

	<-sweepDone
	d.supervisor.Cleanup()
	d.setState(StateDone)
	d.logger.Info("session finished", "session_id", d.id)
	return nil
}

// shutdown runs the teardown path after a startup failure: whatever did
// start is cleaned up, then the driver settles in Done.
func (d *Driver) shutdown() {
	d.setState(StateShuttingDown)
	d.supervisor.Cleanup()
	d.setState(StateDone)
}

// ValidateMeetingURL checks that a meeting URL carries the required prefix.
//
// Returns:
//   - error: ErrInvalidMeetingURL if the prefix is missing, nil otherwise
func ValidateMeetingURL(url, prefix string) error {
	if !strings.HasPrefix(url, prefix) {
		return fmt.Errorf("%w: must start with %s", ErrInvalidMeetingURL, prefix)
	}
	return nil
}

// resolveMeetingURL returns the validated meeting URL.
//
// A URL supplied up front is validated once; invalid is fatal. With no URL
// and interactive input available, the user is prompted until they provide
// a valid one. Non-interactive with no URL is fatal.
func (d *Driver) resolveMeetingURL() (string, error) {
	prefix := d.cfg.Session.MeetingURLPrefix

	if d.meetingURL != "" {
		if err := ValidateMeetingURL(d.meetingURL, prefix); err != nil {
			return "", err
		}
		return d.meetingURL, nil
	}

	if d.input == nil {
		return "", ErrMeetingURLRequired
	}

	scanner := bufio.NewScanner(d.input)
	for {
		fmt.Fprintf(d.output, "Enter the meeting URL (must start with %s): ", prefix)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("reading meeting url: %w", err)
			}
			return "", ErrMeetingURLRequired
		}

		url := strings.TrimSpace(scanner.Text())
		if err := ValidateMeetingURL(url, prefix); err != nil {
			d.logger.Warn("invalid input received", "error", err)
			continue
		}
		return url, nil
	}
}

// botCommand builds the bot worker command line from the configured template.
func (d *Driver) botCommand(p *persona.Persona) []string {
	voice := p.VoiceID
	if voice == "" {
		voice = d.cfg.Session.DefaultVoiceID
	}

	argv := make([]string, 0, len(d.cfg.Processes.Bot.Args)+9)
	argv = append(argv, d.cfg.Processes.Bot.Binary)
	argv = append(argv, d.cfg.Processes.Bot.Args...)
	return append(argv,
		"-p", strconv.Itoa(d.port),
		"--system-prompt", p.Prompt,
		"--persona-name", p.Name,
		"--voice-id", voice,
	)
}

// meetingCommand builds the meeting coordinator command line from the
// configured template.
func (d *Driver) meetingCommand(meetingURL, personaName string) []string {
	argv := make([]string, 0, len(d.cfg.Processes.Meeting.Args)+5)
	argv = append(argv, d.cfg.Processes.Meeting.Binary)
	argv = append(argv, d.cfg.Processes.Meeting.Args...)
	return append(argv,
		"--meeting-url", meetingURL,
		"--persona-name", personaName,
	)
}
