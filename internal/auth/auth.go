// Package auth guards the competition control endpoints with a single
// operator password and HS256 tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// OperatorSubject is the token subject for the operator
const OperatorSubject = "operator"

// ErrInvalidCredentials is returned for a wrong password
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService handles operator authentication
type AuthService struct {
	secret    []byte
	adminHash []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewAuthService creates an auth service from a signing secret and the
// bcrypt hash of the operator password
func NewAuthService(secret, adminPasswordHash string, ttl time.Duration) *AuthService {
	return &AuthService{
		secret:    []byte(secret),
		adminHash: []byte(adminPasswordHash),
		ttl:       ttl,
		now:       time.Now,
	}
}

// HashPassword produces a bcrypt hash for the admin_password_hash setting
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	if len(password) > 72 {
		return "", fmt.Errorf("password too long (max 72 bytes)")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Login verifies the operator password and generates a JWT
func (s *AuthService) Login(password string) (string, error) {
	if err := bcrypt.CompareHashAndPassword(s.adminHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   OperatorSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// GetOperatorFromToken validates a token and returns its subject
func (s *AuthService) GetOperatorFromToken(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.ExpiresAt == nil || claims.Subject != OperatorSubject {
		return "", fmt.Errorf("token is not an operator token")
	}
	return claims.Subject, nil
}
