package portal

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
)

// AccessClaims scope a portal token to one client. The jti makes issued
// links distinguishable in logs.
type AccessClaims struct {
	ClientCode string `json:"client_code"`
	jwt.StandardClaims
}

func portalSecret() ([]byte, error) {
	secret := strings.TrimSpace(os.Getenv("PORTAL_JWT_SECRET"))
	if secret == "" {
		return nil, errors.New("PORTAL_JWT_SECRET is required")
	}
	return []byte(secret), nil
}

// IssueAccessToken signs a portal token for one client code.
func IssueAccessToken(clientCode string, ttl time.Duration) (string, time.Time, error) {
	secret, err := portalSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	expiresAt := time.Now().Add(ttl)
	claims := &AccessClaims{
		ClientCode: clientCode,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// ValidateAccessToken parses a portal token and returns the client code it
// grants access to.
func ValidateAccessToken(token string) (string, error) {
	secret, err := portalSecret()
	if err != nil {
		return "", err
	}

	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid || strings.TrimSpace(claims.ClientCode) == "" {
		return "", errors.New("invalid portal token")
	}
	return claims.ClientCode, nil
}
