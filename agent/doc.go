// Package agent contains the conversational agents of brightmesh.
//
// ModelAgent runs a tool-calling loop against a model.Model: it lists tools
// from its sources, asks the model for the next assistant turn, executes any
// requested function calls in parallel and feeds the responses back until
// the model answers in plain text. Every step is emitted as a core.Event
// through the invocation.
//
// Resolver selects the agent for the current tool availability: the
// professional scraping agent when a tool source exists, a basic assistant
// otherwise.
package agent
