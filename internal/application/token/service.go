package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/otp-auth-api/internal/domain"
)

// TokenSigner mints and validates signed tokens. Parse errors map onto
// domain.ErrTokenExpired / domain.ErrTokenMalformed.
type TokenSigner interface {
	Sign(userID string, tokenType domain.TokenType) (string, time.Time, error)
	Parse(token string) (string, domain.TokenType, error)
}

// TokenStore is the revocation ledger: a token authenticates only while its
// record is present.
type TokenStore interface {
	Put(ctx context.Context, rec *domain.TokenRecord) error
	Get(ctx context.Context, token string) (*domain.TokenRecord, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
}

// UserGetter resolves the owning identity of a verified token.
type UserGetter interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type VerifyReason string

const (
	ReasonExpired   VerifyReason = "expired"
	ReasonMalformed VerifyReason = "malformed"
	ReasonRevoked   VerifyReason = "revoked"
	ReasonUserGone  VerifyReason = "user_gone"
)

// VerifyResult is a structured outcome: invalid tokens carry a reason rather
// than surfacing as errors, so the auth middleware can answer precisely.
type VerifyResult struct {
	Valid  bool
	Reason VerifyReason
	UserID string
	User   *domain.User
}

type Service interface {
	IssueSession(ctx context.Context, userID string) (*Session, error)
	Verify(ctx context.Context, token string) (*VerifyResult, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Revoke(ctx context.Context, token string) error
	RevokeAll(ctx context.Context, userID string) error
}

type service struct {
	signer TokenSigner
	store  TokenStore
	users  UserGetter
}

func NewService(signer TokenSigner, store TokenStore, users UserGetter) Service {
	return &service{signer: signer, store: store, users: users}
}

// IssueSession mints one access and one refresh token for the user and records
// both so they can be revoked later. ExpiresAt doubles as the store's TTL
// attribute, reaping records when the signed expiry passes anyway.
func (s *service) IssueSession(ctx context.Context, userID string) (*Session, error) {
	access, err := s.mint(ctx, userID, domain.TokenTypeAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.mint(ctx, userID, domain.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	slog.Info("session issued", "user_id", userID)
	return &Session{AccessToken: access, RefreshToken: refresh}, nil
}

func (s *service) mint(ctx context.Context, userID string, tokenType domain.TokenType) (string, error) {
	signed, expiresAt, err := s.signer.Sign(userID, tokenType)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", tokenType, err)
	}
	rec := &domain.TokenRecord{
		Token:     signed,
		UserID:    userID,
		Type:      tokenType,
		ExpiresAt: expiresAt.Unix(),
		CreatedAt: time.Now(),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return "", fmt.Errorf("persist %s token: %w", tokenType, err)
	}
	return signed, nil
}

// Verify checks signature and expiry first (no I/O), then revocation, then
// resolves the owning user.
func (s *service) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	userID, _, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, domain.ErrTokenExpired) {
			return &VerifyResult{Reason: ReasonExpired}, nil
		}
		return &VerifyResult{Reason: ReasonMalformed}, nil
	}

	if _, err := s.store.Get(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &VerifyResult{Reason: ReasonRevoked}, nil
		}
		return nil, err
	}

	u, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &VerifyResult{Reason: ReasonUserGone}, nil
		}
		return nil, err
	}
	return &VerifyResult{Valid: true, UserID: userID, User: u}, nil
}

// Refresh exchanges a live refresh token for a fresh session. The old refresh
// token is revoked so each one is single-use; its paired access token keeps
// its own record and expires naturally.
func (s *service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	userID, tokenType, err := s.signer.Parse(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("refresh token rejected: %w", domain.ErrUnauthorized)
	}
	if tokenType != domain.TokenTypeRefresh {
		return nil, fmt.Errorf("not a refresh token: %w", domain.ErrUnauthorized)
	}
	if _, err := s.store.Get(ctx, refreshToken); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("refresh token revoked: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if err := s.store.Delete(ctx, refreshToken); err != nil {
		return nil, err
	}
	return s.IssueSession(ctx, userID)
}

// Revoke deletes the single matching record. Idempotent.
func (s *service) Revoke(ctx context.Context, token string) error {
	return s.store.Delete(ctx, token)
}

// RevokeAll invalidates every token for the user. Used by logout-all and on
// credential-compromise events.
func (s *service) RevokeAll(ctx context.Context, userID string) error {
	if err := s.store.DeleteByUser(ctx, userID); err != nil {
		return err
	}
	slog.Info("all sessions revoked", "user_id", userID)
	return nil
}
