package lua

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrInstructionLimit is the governor's fault once a script exhausts its budget.
	ErrInstructionLimit = errors.New("resource limit exceeded")

	// ErrBootstrap is returned when a builtin sandbox script cannot be read or run.
	ErrBootstrap = errors.New("sandbox bootstrap failed")

	// ErrUnregisteredType is returned when bridging a host value whose type is unknown.
	ErrUnregisteredType = errors.New("unregistered host type")
)

// FaultKind classifies a fault.
type FaultKind int

// Fault kinds.
const (
	// FaultRuntime is any error raised while guest code executes.
	FaultRuntime FaultKind = iota

	// FaultCompile is malformed source.
	FaultCompile

	// FaultResourceExceeded is raised by the instruction governor.
	FaultResourceExceeded

	// FaultForeign is a host-side error or panic that crossed into guest code.
	FaultForeign
)

// String returns a string representation of the kind.
func (k FaultKind) String() string {
	switch k {
	case FaultRuntime:
		return "runtime"
	case FaultCompile:
		return "compile"
	case FaultResourceExceeded:
		return "resource"
	case FaultForeign:
		return "foreign"
	default:
		return "unknown"
	}
}

// Fault is the single error shape observed by diagnostics.
type Fault struct {
	Kind      FaultKind
	Message   string
	Traceback string

	// Err is the error the fault was built from, if any.
	Err error
}

// Error implements error.
func (f *Fault) Error() string {
	return f.Message
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Normalize converts an error or a recovered panic value into a Fault.
// A nil value yields nil.
func Normalize(v any) *Fault {
	switch e := v.(type) {
	case nil:
		return nil
	case *Fault:
		return e
	case *lua.ApiError:
		return faultFromAPIError(e)
	case error:
		var fault *Fault
		if errors.As(e, &fault) {
			return fault
		}
		var apiErr *lua.ApiError
		if errors.As(e, &apiErr) {
			return faultFromAPIError(apiErr)
		}
		kind := FaultForeign
		if errors.Is(e, ErrInstructionLimit) {
			kind = FaultResourceExceeded
		}
		return &Fault{Kind: kind, Message: e.Error(), Err: e}
	case string:
		return &Fault{Kind: FaultForeign, Message: e}
	default:
		return &Fault{Kind: FaultForeign, Message: fmt.Sprint(e)}
	}
}

func faultFromAPIError(e *lua.ApiError) *Fault {
	kind := FaultRuntime
	switch e.Type {
	case lua.ApiErrorSyntax:
		kind = FaultCompile
	case lua.ApiErrorPanic, lua.ApiErrorFile:
		kind = FaultForeign
	}

	msg := ""
	if e.Object != nil {
		msg = e.Object.String()
	}
	return &Fault{
		Kind:      kind,
		Message:   msg,
		Traceback: e.StackTrace,
		Err:       e,
	}
}

// errorMessage returns the message of a Lua error without its traceback.
func errorMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}
