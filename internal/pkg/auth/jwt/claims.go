package jwt

import "github.com/golang-jwt/jwt"

// Payload is the claim set of a relay session token.
type Payload struct {
	jwt.StandardClaims

	// Nickname is the identity the token was issued to.
	Nickname string `json:"nickname"`
}
