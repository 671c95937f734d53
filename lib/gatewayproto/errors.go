package gatewayproto

import "fmt"

// ErrAuth indicates the gateway rejected the username/password pair
// (spec.md §4.B, exit code 3).
type ErrAuth struct{}

func (ErrAuth) Error() string { return "either username or password do not match" }

// ErrChallengeRequired carries a second-factor challenge the gateway
// presented instead of a session cookie.
type ErrChallengeRequired struct {
	Text string
}

func (e *ErrChallengeRequired) Error() string { return e.Text }

// ErrUnknownLoginResponse indicates the login response matched neither a
// session cookie nor a known failure string.
type ErrUnknownLoginResponse struct {
	Body string
}

func (e *ErrUnknownLoginResponse) Error() string {
	return "login process failed, unknown output"
}

// ErrStaleSession indicates the gateway redirected back to the login page,
// meaning the session cookie being used is no longer valid.
type ErrStaleSession struct{}

func (ErrStaleSession) Error() string { return "session is no longer valid" }

// ErrMissingParam indicates a required tunnel parameter was absent.
type ErrMissingParam struct {
	Key string
}

func (e *ErrMissingParam) Error() string { return fmt.Sprintf("missing required parameter %q", e.Key) }
