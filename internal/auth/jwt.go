package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenIssuer   = "psp-connector"
	tokenAudience = "checkout"
	clockLeeway   = 5 * time.Second
)

// Claims identify a checkout session. A session token only grants access to
// the cart it was issued for.
type Claims struct {
	SessionID  string
	CartID     uuid.UUID
	CustomerID string
	ExpiresAt  time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	CartID     string `json:"cart_id"`
	CustomerID string `json:"customer_id,omitempty"`
}

func GenerateToken(cartID uuid.UUID, customerID string, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			Subject:   cartID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		CartID:     cartID.String(),
		CustomerID: customerID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return signed, nil
}

// ValidateToken accepts only HS256 session tokens issued by this service for
// checkout.
func ValidateToken(tokenString string, secret string) (*Claims, error) {
	var tc tokenClaims
	_, err := jwt.ParseWithClaims(tokenString, &tc,
		func(*jwt.Token) (any, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: %w", err)
	}

	cartID, err := uuid.Parse(tc.CartID)
	if err != nil {
		return nil, fmt.Errorf("ValidateToken: invalid cart_id in token: %w", err)
	}

	return &Claims{
		SessionID:  tc.ID,
		CartID:     cartID,
		CustomerID: tc.CustomerID,
		ExpiresAt:  tc.ExpiresAt.Time,
	}, nil
}
