package host

import "fmt"

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// CommandError is returned when the host rejects a command.
type CommandError struct {
	Command string
	Code    int
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed (code %d): %s", e.Command, e.Code, e.Message)
}

// HTTPError represents a non-2xx HTTP response from the host.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// ItemError reports a per-item failure inside an otherwise successful command.
type ItemError struct {
	Command string
	Index   int
	Code    int
	Message string
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s item %d failed (code %d): %s", e.Command, e.Index, e.Code, e.Message)
}
