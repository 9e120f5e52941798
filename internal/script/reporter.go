package script

import (
	"log/slog"

	plua "github.com/dshills/avatarscript/internal/script/lua"
)

// Reporter is the fault boundary of a runtime.
type Reporter struct {
	channel Channel
	logger  *slog.Logger
}

// NewReporter creates a reporter emitting diagnostics on channel.
func NewReporter(channel Channel, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{channel: channel, logger: logger}
}

// Report classifies err, emits its diagnostic, flags the owner, clears the
// owner's runtime slot and closes rt. The transition is one-way.
func (r *Reporter) Report(rt *Runtime, err error) *plua.Fault {
	if err == nil {
		return nil
	}

	fault := rt.state.Classify(err)
	owner := rt.owner

	if r.channel != nil {
		r.channel.Fault(Diagnostic{
			DisplayName: owner.DisplayName(),
			OwnerID:     owner.OwnerID(),
			Kind:        fault.Kind,
			Message:     fault.Message,
			Traceback:   fault.Traceback,
		})
	}

	owner.MarkScriptError()
	owner.DetachRuntime(rt)
	rt.Close()

	r.logger.Debug("runtime discarded", "kind", fault.Kind.String())
	return fault
}
