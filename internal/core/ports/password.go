package ports

import "context"

// PasswordPrompt asks the user for the password and verifies it before
// returning. Cancelling the prompt must return an error.
type PasswordPrompt interface {
	PromptAndVerify(ctx context.Context, reason string) (string, error)
	// CachedPassword returns the last verified password of the session, if
	// any. Only background maintenance tasks may use it.
	CachedPassword() (string, bool)
}
