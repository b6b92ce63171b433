package core

// Agent is the unit of conversational work driven by a Runner.
//
// Run must emit its output through the Invocation and return once the turn
// is complete. Implementations must respect cancellation of the invocation
// context.
type Agent interface {
	Name() string
	Description() string
	Run(inv *Invocation) error
}
