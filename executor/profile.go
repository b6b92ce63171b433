package executor

import (
	"fmt"
	"time"
)

// Default deadlines of the built-in profiles.
const (
	DefaultChatTimeout  = 90 * time.Second
	DefaultQuickTimeout = 30 * time.Second
)

// Fallback texts used when a run completes without text.
const (
	ChatFallback  = "I processed your request, but I'm having trouble generating a response. Please try again or rephrase your question."
	QuickFallback = "Quick comparison completed - check results above"
)

// Profile is the per-endpoint deadline and wording policy.
type Profile struct {
	Name    string
	Timeout time.Duration
	// Fallback replaces an empty result of a completed run.
	Fallback string
	// PartialNotice is appended to the gathered text on timeout.
	PartialNotice func(timeout time.Duration) string
	// EmptyNotice, when set, replaces the text of a timeout that gathered
	// nothing. Without it PartialNotice is used alone.
	EmptyNotice func(timeout time.Duration) string
}

// ChatProfile is the profile of conversational requests.
func ChatProfile(timeout time.Duration) *Profile {
	return &Profile{
		Name:     "chat",
		Timeout:  timeout,
		Fallback: ChatFallback,
		PartialNotice: func(d time.Duration) string {
			return fmt.Sprintf("\n\n⏱️ **Note**: Request timed out after %d seconds. Showing partial results gathered so far.", seconds(d))
		},
		EmptyNotice: func(d time.Duration) string {
			return fmt.Sprintf("⏱️ **Request timed out** after %d seconds. The comparison is taking longer than expected. Please try a more specific query or try again later.", seconds(d))
		},
	}
}

// QuickProfile is the profile of quick comparisons. Its notice is appended
// on every timeout.
func QuickProfile(timeout time.Duration) *Profile {
	return &Profile{
		Name:     "quick",
		Timeout:  timeout,
		Fallback: QuickFallback,
		PartialNotice: func(d time.Duration) string {
			return fmt.Sprintf("\n\n⚡ **Quick comparison completed** in %d seconds.", seconds(d))
		},
	}
}

func seconds(d time.Duration) int { return int(d / time.Second) }
