package jwtinfra

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/domain"
)

// Claims holds the JWT payload fields.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Provider signs and parses RS256 JWTs. Access and refresh tokens share the
// signing key and differ only in TTL and the token_type claim.
type Provider struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewProvider(cfg *config.Config) (*Provider, error) {
	privBytes, err := os.ReadFile(cfg.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privBytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubBytes, err := os.ReadFile(cfg.JWTPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubBytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &Provider{
		privateKey: privKey,
		publicKey:  pubKey,
		accessTTL:  time.Duration(cfg.AccessTokenExpiryDays) * 24 * time.Hour,
		refreshTTL: time.Duration(cfg.RefreshTokenExpiryDays) * 24 * time.Hour,
	}, nil
}

// Sign mints a token of the given type and returns it with its expiry, which
// callers persist alongside the token for revocation checking.
func (p *Provider) Sign(userID string, tokenType domain.TokenType) (string, time.Time, error) {
	ttl := p.accessTTL
	if tokenType == domain.TokenTypeRefresh {
		ttl = p.refreshTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID:    userID,
		TokenType: string(tokenType),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.privateKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse validates signature and expiry and returns the embedded identity.
// Failures map onto domain.ErrTokenExpired / domain.ErrTokenMalformed so the
// token engine can report a precise reason without importing this package's
// dependency.
func (p *Provider) Parse(tokenStr string) (string, domain.TokenType, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.publicKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", fmt.Errorf("parse token: %w", domain.ErrTokenExpired)
		}
		return "", "", fmt.Errorf("parse token: %w", domain.ErrTokenMalformed)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid token claims: %w", domain.ErrTokenMalformed)
	}
	return claims.UserID, domain.TokenType(claims.TokenType), nil
}
