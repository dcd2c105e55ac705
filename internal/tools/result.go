// Package tools exposes the job lifecycle, product catalog and search
// backend as named tools. Every tool answers with the same envelope, so a
// caller never has to inspect transport errors.
package tools

// Envelope status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Result is the uniform tool response.
type Result struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Success builds a successful Result.
func Success(message string, data any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

// Failure builds an error Result whose message is err's text.
func Failure(err error) Result {
	return Result{Status: StatusError, Message: err.Error()}
}

// OK reports whether the result is a success.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// WithData returns a copy of r carrying data.
func (r Result) WithData(data any) Result {
	r.Data = data
	return r
}
