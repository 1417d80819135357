package authapi

import (
	"time"

	"flock/cmd/identity"
	"flock/cmd/internal/auth/session"
)

type registerRequest struct {
	Email    string  `json:"email"`
	Username *string `json:"username"`
	Password string  `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

type authResponse struct {
	User   userResponse  `json:"user"`
	Tokens tokenResponse `json:"tokens"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

func toUserResponse(a identity.Account) userResponse {
	return userResponse{
		ID:        a.ID,
		Email:     a.Email,
		Username:  a.Username,
		CreatedAt: a.CreatedAt,
	}
}

func toAuthResponse(auth session.Auth) authResponse {
	return authResponse{
		User: toUserResponse(auth.Account),
		Tokens: tokenResponse{
			AccessToken:  auth.Tokens.AccessToken,
			RefreshToken: auth.Tokens.RefreshToken,
			TokenType:    "Bearer",
		},
	}
}
