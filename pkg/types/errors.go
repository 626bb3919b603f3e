package types

// ValidationError reports bad or missing input. No network call is made
// when a command fails validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
