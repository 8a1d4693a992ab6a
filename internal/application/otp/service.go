package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/infrastructure/delivery"
	"github.com/otp-auth-api/internal/pkg/id"
	"github.com/otp-auth-api/internal/pkg/identifier"
	"golang.org/x/crypto/bcrypt"
)

// resendCooldown is the minimum spacing between issuances for the same
// (identifier, purpose). Re-requesting sooner returns ErrTooManyRequests
// instead of invalidating the pending code.
const resendCooldown = time.Minute

type IssueRequest struct {
	PhoneNumber string                 `json:"phone_number"`
	Email       string                 `json:"email"`
	Purpose     domain.OTPPurpose      `json:"purpose"`
	Metadata    map[string]interface{} `json:"-"`
}

type IssueResult struct {
	OTPID      string            `json:"otp_id"`
	Identifier string            `json:"identifier"`
	Purpose    domain.OTPPurpose `json:"purpose"`
	Channel    delivery.Channel  `json:"channel"`
	ExpiresAt  int64             `json:"expires_at"`
}

type VerifyRequest struct {
	PhoneNumber string            `json:"phone_number"`
	Email       string            `json:"email"`
	Purpose     domain.OTPPurpose `json:"purpose"`
	Code        string            `json:"code"`
}

type VerifyReason string

const (
	ReasonInvalidInput      VerifyReason = "invalid_input"
	ReasonNotFound          VerifyReason = "not_found"
	ReasonExpired           VerifyReason = "expired"
	ReasonAttemptsExhausted VerifyReason = "attempts_exhausted"
	ReasonMismatch          VerifyReason = "mismatch"
)

// VerifyResult is a structured outcome, not a fault: every non-valid path
// carries a reason and a human-readable message so callers can render precise
// feedback. AttemptsRemaining is meaningful only on Mismatch.
type VerifyResult struct {
	Valid             bool                   `json:"valid"`
	Reason            VerifyReason           `json:"reason,omitempty"`
	Message           string                 `json:"message,omitempty"`
	AttemptsRemaining int                    `json:"attempts_remaining,omitempty"`
	Metadata          map[string]interface{} `json:"-"`
}

// OTPStore is the persistence surface the engine consumes.
type OTPStore interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	GetPending(ctx context.Context, identifier string, purpose domain.OTPPurpose) (*domain.OTPRecord, error)
	DeleteUnverified(ctx context.Context, identifier string, purpose domain.OTPPurpose) error
	Update(ctx context.Context, otpID string, updates map[string]interface{}) error
	Delete(ctx context.Context, otpID string) error
	HasVerified(ctx context.Context, identifier string) (bool, error)
}

// CodeDispatcher is the outbound delivery surface.
type CodeDispatcher interface {
	SendCode(ctx context.Context, phone, email, code string) (delivery.Dispatch, error)
	SendEmailCode(email, code string) error
	CheckDelegated(ctx context.Context, phone, code string) (delivery.CheckResult, error)
}

type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*IssueResult, error)
	Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error)
	IsIdentifierVerified(ctx context.Context, rawIdentifier string) (bool, error)
}

type service struct {
	store       OTPStore
	dispatcher  CodeDispatcher
	digits      int
	expiry      time.Duration
	maxAttempts int
	retention   time.Duration
}

func NewService(store OTPStore, dispatcher CodeDispatcher, digits, expiryMinutes, maxAttempts, retentionMinutes int) Service {
	return &service{
		store:       store,
		dispatcher:  dispatcher,
		digits:      digits,
		expiry:      time.Duration(expiryMinutes) * time.Minute,
		maxAttempts: maxAttempts,
		retention:   time.Duration(retentionMinutes) * time.Minute,
	}
}

// target is the normalized view of a request's identifiers. The canonical
// identifier is the phone when one is supplied, else the email; the other
// address rides along for delivery fallback.
type target struct {
	identifier string
	phone      string
	email      string
}

func resolveTarget(rawPhone, rawEmail string) (target, error) {
	var t target
	if rawPhone != "" {
		phone, ok := identifier.NormalizePhone(rawPhone)
		if !ok {
			return t, fmt.Errorf("invalid phone number: %w", domain.ErrBadRequest)
		}
		t.phone = phone
		t.identifier = phone
	}
	if rawEmail != "" {
		email, ok := identifier.NormalizeEmail(rawEmail)
		if !ok {
			return t, fmt.Errorf("invalid email address: %w", domain.ErrBadRequest)
		}
		t.email = email
		if t.identifier == "" {
			t.identifier = email
		}
	}
	if t.identifier == "" {
		return t, fmt.Errorf("phone_number or email required: %w", domain.ErrBadRequest)
	}
	return t, nil
}

func (s *service) Issue(ctx context.Context, req IssueRequest) (*IssueResult, error) {
	if !req.Purpose.Valid() {
		return nil, fmt.Errorf("invalid purpose %q: %w", req.Purpose, domain.ErrBadRequest)
	}
	t, err := resolveTarget(req.PhoneNumber, req.Email)
	if err != nil {
		return nil, err
	}

	// Per-identifier throttle: a pending code younger than the cooldown blocks
	// re-issuance rather than silently rotating the code out from under the user.
	if pending, err := s.store.GetPending(ctx, t.identifier, req.Purpose); err == nil {
		if time.Since(pending.CreatedAt) < resendCooldown {
			return nil, fmt.Errorf("an OTP was recently sent, retry later: %w", domain.ErrTooManyRequests)
		}
	}

	if err := s.store.DeleteUnverified(ctx, t.identifier, req.Purpose); err != nil {
		return nil, fmt.Errorf("invalidate prior codes: %w", err)
	}

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}

	// Delivery precedes persistence: a failed send must not leave a usable record.
	var disp delivery.Dispatch
	if t.phone != "" {
		disp, err = s.dispatcher.SendCode(ctx, t.phone, t.email, code)
	} else {
		err = s.dispatcher.SendEmailCode(t.email, code)
		disp = delivery.Dispatch{Channel: delivery.ChannelEmail}
	}
	if err != nil {
		return nil, fmt.Errorf("deliver otp: %w", err)
	}

	otpCode := domain.DelegatedCode()
	if !disp.Delegated {
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		otpCode = domain.LiteralCode(string(hash))
	}

	now := time.Now()
	expiresAt := now.Add(s.expiry)
	rec := &domain.OTPRecord{
		OTPID:      id.New(),
		Identifier: t.identifier,
		Purpose:    req.Purpose,
		Code:       otpCode,
		ExpiresAt:  expiresAt.Unix(),
		Attempts:   0,
		Verified:   false,
		Metadata:   req.Metadata,
		TTLAt:      expiresAt.Add(s.retention).Unix(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist otp record: %w", err)
	}

	slog.Info("otp issued",
		"otp_id", rec.OTPID,
		"purpose", rec.Purpose,
		"channel", disp.Channel,
		"delegated", disp.Delegated)

	return &IssueResult{
		OTPID:      rec.OTPID,
		Identifier: rec.Identifier,
		Purpose:    rec.Purpose,
		Channel:    disp.Channel,
		ExpiresAt:  rec.ExpiresAt,
	}, nil
}

func (s *service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if !validCodeShape(req.Code, s.digits) {
		return &VerifyResult{
			Reason:  ReasonInvalidInput,
			Message: fmt.Sprintf("OTP must be a %d-digit code", s.digits),
		}, nil
	}
	if !req.Purpose.Valid() {
		return &VerifyResult{Reason: ReasonInvalidInput, Message: "invalid purpose"}, nil
	}
	t, err := resolveTarget(req.PhoneNumber, req.Email)
	if err != nil {
		return &VerifyResult{Reason: ReasonInvalidInput, Message: "invalid identifier"}, nil
	}

	rec, err := s.store.GetPending(ctx, t.identifier, req.Purpose)
	if err != nil {
		return &VerifyResult{Reason: ReasonNotFound, Message: "no pending OTP for this identifier"}, nil
	}

	now := time.Now()
	if rec.Expired(now) {
		if err := s.store.Delete(ctx, rec.OTPID); err != nil {
			return nil, err
		}
		return &VerifyResult{Reason: ReasonExpired, Message: "OTP has expired, request a new one"}, nil
	}

	// Exhaustion normally deletes the record on the failing attempt; this
	// re-assertion guards records written before that behavior existed.
	if rec.Attempts >= s.maxAttempts {
		if err := s.store.Delete(ctx, rec.OTPID); err != nil {
			return nil, err
		}
		return &VerifyResult{Reason: ReasonAttemptsExhausted, Message: "maximum attempts exceeded, request a new OTP"}, nil
	}

	match, err := s.compare(ctx, rec, t.phone, req.Code)
	if err != nil {
		return nil, err
	}
	if !match {
		rec.Attempts++
		if rec.Attempts >= s.maxAttempts {
			if err := s.store.Delete(ctx, rec.OTPID); err != nil {
				return nil, err
			}
			return &VerifyResult{Reason: ReasonAttemptsExhausted, Message: "maximum attempts exceeded, request a new OTP"}, nil
		}
		if err := s.store.Update(ctx, rec.OTPID, map[string]interface{}{
			"attempts":   rec.Attempts,
			"updated_at": now.Format(time.RFC3339Nano),
		}); err != nil {
			return nil, err
		}
		remaining := s.maxAttempts - rec.Attempts
		return &VerifyResult{
			Reason:            ReasonMismatch,
			Message:           fmt.Sprintf("incorrect OTP, %d attempts remaining", remaining),
			AttemptsRemaining: remaining,
		}, nil
	}

	if err := s.store.Update(ctx, rec.OTPID, map[string]interface{}{
		"verified":   true,
		"updated_at": now.Format(time.RFC3339Nano),
	}); err != nil {
		return nil, err
	}
	return &VerifyResult{Valid: true, Metadata: rec.Metadata}, nil
}

// compare routes the candidate code to the right comparison: hosted provider
// check for delegated records, constant-time hash comparison for literal ones.
func (s *service) compare(ctx context.Context, rec *domain.OTPRecord, phone, code string) (bool, error) {
	if rec.Code.Delegated {
		if phone == "" {
			phone = rec.Identifier
		}
		res, err := s.dispatcher.CheckDelegated(ctx, phone, code)
		if err != nil {
			return false, fmt.Errorf("delegated code check: %w", err)
		}
		return res.Valid, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(rec.Code.Hash), []byte(code)) == nil, nil
}

func (s *service) IsIdentifierVerified(ctx context.Context, rawIdentifier string) (bool, error) {
	canonical := rawIdentifier
	if phone, ok := identifier.NormalizePhone(rawIdentifier); ok {
		canonical = phone
	} else if email, ok := identifier.NormalizeEmail(rawIdentifier); ok {
		canonical = email
	} else {
		return false, fmt.Errorf("invalid identifier: %w", domain.ErrBadRequest)
	}
	return s.store.HasVerified(ctx, canonical)
}

// generateCode draws uniformly over the N-digit space and zero-pads, so
// "012345" is as likely as any other value.
func (s *service) generateCode() (string, error) {
	bound := big.NewInt(1)
	for i := 0; i < s.digits; i++ {
		bound.Mul(bound, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%0*d", s.digits, n.Int64()), nil
}

func validCodeShape(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
