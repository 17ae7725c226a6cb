package dto

// Envelope is the uniform response shape for every API operation.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func OK(data any) Envelope      { return Envelope{Success: true, Data: data} }
func Fail(msg string) Envelope  { return Envelope{Success: false, Error: msg} }
