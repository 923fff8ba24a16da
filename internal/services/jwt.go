package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rentverse-backend/internal/models"
)

// JWTService issues and validates session tokens
type JWTService struct {
	secret string
	expiry time.Duration
	issuer string
	now    func() time.Time
}

// Claims is the session token payload: {id, role}
type Claims struct {
	UserID uuid.UUID   `json:"id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

func NewJWTService(secret string, expiryHours int, issuer string) *JWTService {
	return &JWTService{
		secret: secret,
		expiry: time.Duration(expiryHours) * time.Hour,
		issuer: issuer,
		now:    time.Now,
	}
}

// Generate signs a token for the user
func (j *JWTService) Generate(userID uuid.UUID, role models.Role) (string, error) {
	now := j.now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(j.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate checks the signature and expiry and returns the claims
func (j *JWTService) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secret), nil
	}, jwt.WithTimeFunc(j.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
