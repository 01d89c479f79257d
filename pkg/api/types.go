package api

// OrderStateResponse is the JSON form of one order's lifecycle state.
type OrderStateResponse struct {
	Hash         string `json:"hash"`
	Status       string `json:"status"`
	FilledAmount string `json:"filledAmount"`
}

// OrderStatesRequest is a batch state query.
type OrderStatesRequest struct {
	Hashes []string `json:"hashes"`
}

// AdminRequest carries the asserted caller for the operational switch.
type AdminRequest struct {
	Caller string `json:"caller"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports process liveness and the operational flag.
type HealthResponse struct {
	Status      string `json:"status"`
	Operational bool   `json:"operational"`
}

// WSEvent wraps an engine event with its type tag for the stream.
type WSEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}
