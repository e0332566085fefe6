package api

import "time"

// TokenRequest represents the request payload for token issuance
type TokenRequest struct {
	UserID string `json:"user_id"`
}

// TokenResponse represents the response payload for token issuance
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
}

// LoginRequest carries portal credentials to the login proxy
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse bundles the gateway token with the portal identity
type LoginResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
	PortalToken string    `json:"portal_token"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	ImageURL    string    `json:"image_url,omitempty"`
}

// FieldUpdateRequest sets one voice session form field
type FieldUpdateRequest struct {
	Value string `json:"value"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
