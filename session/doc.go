// Package session houses concrete implementations of core.SessionService.
// The interface itself (and the Session struct) live in the core package so
// higher level packages (agents, runner, executor) do not depend on concrete
// storage.
//
// The request executor creates one session per request and deletes it once
// the run has drained, so the in-memory backend stays bounded.
package session
