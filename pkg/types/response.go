package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ErrorBody is the single error shape every endpoint returns. Stack is only populated
// outside production.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}
