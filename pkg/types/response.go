package types

// Response envelopes shared by every API handler. Callers get either
// {"data": ...} or {"error": {...}}, never both.

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success wraps a payload in the success envelope.
func Success(data any) SuccessEnvelope {
	return SuccessEnvelope{Data: data}
}

// Failure builds the error envelope for a code and public message.
func Failure(code, message string, details any) ErrorEnvelope {
	return ErrorEnvelope{Error: APIError{Code: code, Message: message, Details: details}}
}
