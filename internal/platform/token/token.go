// Package token issues and validates operator access tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "vaxtrack/pkg/domain"
	dErrors "vaxtrack/pkg/domain-errors"
	authmw "vaxtrack/pkg/platform/middleware/auth"
)

// Claims carries the operator identity inside a signed token.
type Claims struct {
	OperatorID string `json:"operator_id"`
	jwt.RegisteredClaims
}

// Service handles JWT creation and validation for operator tokens.
type Service struct {
	signingKey []byte
	issuer     string
}

func NewService(signingKey, issuer string) *Service {
	return &Service{signingKey: []byte(signingKey), issuer: issuer}
}

// GenerateToken signs a token for an operator. Used by the seeding CLI and by
// tests; production tokens come from the clinic platform with the same key.
func (s *Service) GenerateToken(operatorID id.OperatorID, expiresIn time.Duration) (string, error) {
	now := time.Now()
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		OperatorID: operatorID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
		},
	})
	return newToken.SignedString(s.signingKey)
}

// ValidateToken implements auth.TokenValidator.
func (s *Service) ValidateToken(tokenString string) (*authmw.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &authmw.Claims{OperatorID: claims.OperatorID}, nil
}
