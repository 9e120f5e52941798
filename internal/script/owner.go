package script

import "github.com/google/uuid"

// Owner is the entity a runtime is bound to for its lifetime.
//
// The runtime keeps a non-owning reference: the owner holds the runtime in
// its slot and the Reporter clears that slot through DetachRuntime.
type Owner interface {
	// DisplayName is the entity name shown in diagnostics.
	DisplayName() string

	// OwnerID identifies the player the avatar belongs to.
	OwnerID() uuid.UUID

	// MarkScriptError sets the owner's fault flag.
	MarkScriptError()

	// DetachRuntime clears the owner's runtime slot if it still holds rt.
	DetachRuntime(rt *Runtime)
}
