package api

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

// TokenRequest is the POST /api/v1/token payload.
type TokenRequest struct {
	SessionName string `json:"session_name"`
}

// TokenResponse carries an issued session token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// ErrorResponse is the generic error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
