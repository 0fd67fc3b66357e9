package catalog

import "fmt"

// AuthError reports a failed credential exchange or a 401 that survived a
// forced token refresh.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("catalog auth failed: status=%d body=%s", e.Status, truncateBody(e.Body))
}

// ValidationError reports that every rung of the resource ladder was
// rejected by the provider.
type ValidationError struct {
	Status int
	Body   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("catalog rejected all resource sets: status=%d body=%s", e.Status, truncateBody(e.Body))
}

// RateLimitedError reports a 429 that persisted through the retry budget.
// Callers should stop issuing catalog calls for the current run.
type RateLimitedError struct {
	Attempts int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("catalog rate limited after %d attempts", e.Attempts)
}

// UpstreamError reports a 5xx or transport failure that persisted through
// the retry budget.
type UpstreamError struct {
	Status int
	Body   string
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog upstream error: %v", e.Err)
	}
	return fmt.Sprintf("catalog upstream error: status=%d body=%s", e.Status, truncateBody(e.Body))
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func truncateBody(s string) string {
	if len(s) > 300 {
		return s[:297] + "..."
	}
	return s
}
