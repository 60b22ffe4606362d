package models

// LoginRequest carries the owner's password
type LoginRequest struct {
	Password string `json:"password"`
}

// Token is the bearer token issued on login
type Token struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}
