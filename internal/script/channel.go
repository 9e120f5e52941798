package script

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// Diagnostic is the formatted form of a fault delivered to a Channel.
type Diagnostic struct {
	DisplayName string
	OwnerID     uuid.UUID
	Kind        plua.FaultKind
	Message     string
	Traceback   string
}

// String formats the diagnostic for display.
func (d Diagnostic) String() string {
	return fmt.Sprintf("[lua] %s (%s): %s", d.DisplayName, d.OwnerID, d.Message)
}

// Channel receives script output and fault diagnostics.
type Channel interface {
	// Output receives text printed by a script.
	Output(owner Owner, text string)

	// Fault receives the diagnostic of a fatal fault.
	Fault(d Diagnostic)
}

// LogChannel writes printed text to Writer and logs faults with Logger.
type LogChannel struct {
	Logger *slog.Logger
	Writer io.Writer
}

// NewLogChannel creates a channel that prints to stdout and logs to logger.
func NewLogChannel(logger *slog.Logger) *LogChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogChannel{Logger: logger, Writer: os.Stdout}
}

// Output implements Channel.
func (c *LogChannel) Output(owner Owner, text string) {
	if c.Writer == nil {
		return
	}
	fmt.Fprintf(c.Writer, "[lua] %s : %s\n", owner.DisplayName(), text)
}

// Fault implements Channel.
func (c *LogChannel) Fault(d Diagnostic) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("script fault",
		"entity", d.DisplayName,
		"owner", d.OwnerID.String(),
		"kind", d.Kind.String(),
		"error", d.Message,
	)
	if d.Traceback != "" {
		logger.Debug("script traceback", "entity", d.DisplayName, "traceback", d.Traceback)
	}
}
