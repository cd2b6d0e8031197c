package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in identity tokens.
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Identity is the request-scoped caller passed into core operations.
type Identity struct {
	ID   int64
	Role string
}

// Claims represents JWT payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issue signs an identity token valid for ttl.
func Issue(id Identity, issuer, key string, ttl time.Duration) (string, time.Time, error) {
	if id.ID <= 0 {
		return "", time.Time{}, errors.New("identity id must be positive")
	}
	if id.Role != RoleTeacher && id.Role != RoleStudent {
		return "", time.Time{}, errors.New("unknown role " + strconv.Quote(id.Role))
	}
	now := time.Now()
	exp := now.Add(ttl)

	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(id.ID, 10),
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse validates a token and returns the identity it carries.
func Parse(tokenStr, key, issuer string) (Identity, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Identity{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Identity{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Identity{}, errors.New("issuer mismatch")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Identity{}, errors.New("invalid subject")
	}
	return Identity{ID: id, Role: claims.Role}, nil
}
