// Package identity adapts the external identity provider contract: every
// coordinator call arrives with a bearer token carrying an authenticated
// actor ID and verified email. Credential verification happens upstream;
// this package only checks the signature and extracts claims.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"regbook/internal/platform/middleware"
	id "regbook/pkg/domain"
	dErrors "regbook/pkg/domain-errors"
)

// Claims are the JWT claims regbook expects from the identity provider.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// JWTService validates provider-issued tokens. It can also mint tokens,
// which local development and the e2e-style handler tests use.
type JWTService struct {
	signingKey []byte
	issuer     string
}

func NewJWTService(signingKey string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     "regbook-identity",
	}
}

// GenerateToken mints a token for a known actor. Development/test helper.
func (s *JWTService) GenerateToken(userID id.UserID, email string, expiresIn time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken checks the signature and expiry and returns the actor's
// identity for the middleware to inject into context.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.Claims, error) {
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

	userID, err := id.ParseUserID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is not a user ID")
	}
	if claims.Email == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token carries no verified email")
	}

	return &middleware.Claims{UserID: userID, Email: claims.Email}, nil
}
