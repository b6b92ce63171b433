// Package runner executes an agent against a session.
//
// Run resolves the session, records the user message, starts the agent in
// the background and returns two channels: the ordered event stream and an
// error channel with capacity one. Non-partial events are persisted to the
// session service before delivery. Runs can be cancelled by id.
package runner
