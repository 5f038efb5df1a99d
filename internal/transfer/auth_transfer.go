package transfer

import "github.com/golang-jwt/jwt/v5"

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name" validate:"required,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthorizationStart is handed back to the connect-account handler; state and
// verifier travel in short-lived cookies, never in persistent storage.
type AuthorizationStart struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
	Verifier         string `json:"verifier"`
}

type AccountInfo struct {
	Connected bool   `json:"connected"`
	AccountID string `json:"account_id,omitempty"`
	Username  string `json:"username,omitempty"`
}
