// Package core provides the foundational domain types and interfaces used by
// brightmesh. It defines:
//
//   - Events (immutable records emitted by agents while a run is in flight)
//   - Content and Parts (role based message payloads)
//   - Sessions and the SessionService that allocates them
//   - Agents and the Invocation scope they run in
//
// Implementation concerns (persistence, model providers, tool transports)
// live in sibling packages and depend on these small interfaces.
package core
