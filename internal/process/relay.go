package process

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"meetpilot/internal/infrastructure/logging"
)

// Severity classifies a line of child-process output.
type Severity string

// Output severities, in classification priority order.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

// maxLineSize is the scanner buffer limit for a single output line.
const maxLineSize = 256 * 1024

// Sink receives classified output lines and lifecycle events from the
// supervisor, in addition to the structured log. The API server's WebSocket
// hub implements this to stream output to connected clients.
//
// Implementations must be safe for concurrent use: relays for different
// streams call ProcessOutput from separate goroutines.
type Sink interface {
	ProcessOutput(name, stream string, severity Severity, line string)
	ProcessExited(name string, exitCode int)
}

// Classify returns the severity for a line of process output.
//
// Priority order: a line containing "ERROR" is an error even if it also
// contains "WARNING" or "SUCCESS"; "WARNING" beats "SUCCESS"; everything
// else is info.
func Classify(line string) Severity {
	switch {
	case strings.Contains(line, "ERROR"):
		return SeverityError
	case strings.Contains(line, "WARNING"):
		return SeverityWarning
	case strings.Contains(line, "SUCCESS"):
		return SeveritySuccess
	default:
		return SeverityInfo
	}
}

// Relay consumes one output stream of a supervised process line-by-line,
// classifies each line, and forwards it to the logger and optional sink.
type Relay struct {
	name   string
	stream string
	logger *logging.Logger
	sink   Sink
}

// NewRelay creates a relay for one stream of the named process.
//
// Parameters:
//   - name: Process name, used as the log label prefix
//   - stream: "stdout" or "stderr"
//   - logger: Destination for classified lines
//   - sink: Optional secondary destination (may be nil)
func NewRelay(name, stream string, logger *logging.Logger, sink Sink) *Relay {
	return &Relay{
		name:   name,
		stream: stream,
		logger: logger,
		sink:   sink,
	}
}

// Run consumes the reader until end-of-stream. It never returns an error:
// a read failure is logged and the relay simply stops. Blank lines are
// skipped; every other line is logged at its classified severity.
//
// Run blocks and is expected to be invoked on its own goroutine, one per
// stream, so that neither stream can stall the supervisor's main flow.
func (r *Relay) Run(rd io.Reader) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		severity := Classify(line)
		r.log(severity, line)

		if r.sink != nil {
			r.sink.ProcessOutput(r.name, r.stream, severity, line)
		}
	}

	if err := scanner.Err(); err != nil {
		// Non-fatal: the stream is abandoned, the process keeps running.
		r.logger.Warn("output stream read failed",
			"name", r.name,
			"stream", r.stream,
			"error", err,
		)
	}
}

// log writes one classified line with the process name as prefix.
func (r *Relay) log(severity Severity, line string) {
	r.logger.Log(context.Background(), severityLevel(severity),
		line,
		"name", r.name,
		"stream", r.stream,
	)
}

// severityLevel maps a Severity to its slog level.
func severityLevel(s Severity) slog.Level {
	switch s {
	case SeverityError:
		return slog.LevelError
	case SeverityWarning:
		return slog.LevelWarn
	case SeveritySuccess:
		return logging.LevelSuccess
	default:
		return slog.LevelInfo
	}
}
