// Package model defines the provider-agnostic abstractions for interacting
// with language models.
//
// Core goals:
//   - One Generate contract for every provider
//   - Normalized tool definitions and function call parts
//   - Minimal request/response shapes independent of vendor SDKs
//   - Lightweight mocking for tests and offline runs (MockModel)
//
// Providers (model/openai, model/anthropic) implement Model so agents stay
// decoupled from vendor SDKs.
package model
