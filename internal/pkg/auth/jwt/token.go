/*
Package jwt issues and verifies the session tokens handed out on register and login.
The websocket session itself is bound to a connection; tokens let the same identity
authenticate side requests such as uploads.
*/
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// SessionExpiration is the lifetime of a session token.
	SessionExpiration = 24 * time.Hour

	// TokenIssuer identifies tokens minted by this server.
	TokenIssuer = "relaychat"
)

// Issuer signs session tokens with a shared HMAC secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer returns an Issuer. A zero ttl means SessionExpiration.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = SessionExpiration
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Issue creates a signed token for nickname.
func (i *Issuer) Issue(nickname string) (string, error) {
	now := time.Now()
	payload := &Payload{
		StandardClaims: jwt.StandardClaims{
			Subject:   nickname,
			ExpiresAt: now.Add(i.ttl).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    TokenIssuer,
		},
		Nickname: nickname,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(i.secret)
}

// Parse verifies tokenString and returns its payload.
func (i *Issuer) Parse(tokenString string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid || claims.Nickname == "" {
		return nil, errors.New("invalid or expired token")
	}

	return claims, nil
}
