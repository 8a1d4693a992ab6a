package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/token"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/id"
	"github.com/otp-auth-api/internal/pkg/identifier"
	"github.com/otp-auth-api/internal/pkg/validate"
)

// metadata keys carried through the OTP record between issuance and the
// post-verification action.
const (
	metaUserData = "user_data"
	metaUserID   = "user_id"
)

// UserStore is the user-directory surface consumed by the flows.
type UserStore interface {
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
}

type LoginRequest struct {
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

// AuthResult is what a completed registration or login hands back.
type AuthResult struct {
	User    *domain.User   `json:"user"`
	Session *token.Session `json:"session"`
}

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*otp.IssueResult, error)
	VerifyRegistration(ctx context.Context, req otp.VerifyRequest) (*AuthResult, *otp.VerifyResult, error)
	Login(ctx context.Context, req LoginRequest) (*otp.IssueResult, error)
	VerifyLogin(ctx context.Context, req otp.VerifyRequest) (*AuthResult, *otp.VerifyResult, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
}

type service struct {
	users  UserStore
	otps   otp.Service
	tokens token.Service
}

func NewService(users UserStore, otps otp.Service, tokens token.Service) Service {
	return &service{users: users, otps: otps, tokens: tokens}
}

// Register validates the full registration form, checks uniqueness, and issues
// a registration OTP. The form itself rides in the OTP metadata so nothing is
// persisted until the code is verified.
func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*otp.IssueResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", err.Error(), domain.ErrBadRequest)
	}
	email, ok := identifier.NormalizeEmail(req.Email)
	if !ok {
		return nil, fmt.Errorf("invalid email address: %w", domain.ErrBadRequest)
	}
	req.Email = email

	var phone string
	if req.PhoneNumber != nil && *req.PhoneNumber != "" {
		p, ok := identifier.NormalizePhone(*req.PhoneNumber)
		if !ok {
			return nil, fmt.Errorf("invalid phone number: %w", domain.ErrBadRequest)
		}
		phone = p
		req.PhoneNumber = &p
	}

	if err := s.checkAvailable(ctx, email, phone); err != nil {
		return nil, err
	}

	meta, err := userDataMetadata(req)
	if err != nil {
		return nil, err
	}
	return s.otps.Issue(ctx, otp.IssueRequest{
		PhoneNumber: phone,
		Email:       email,
		Purpose:     domain.PurposeRegistration,
		Metadata:    meta,
	})
}

// VerifyRegistration checks the registration code and, on success, replays the
// stashed form into user creation and opens a session. A non-valid check comes
// back as the second return value so the caller can render the precise reason.
func (s *service) VerifyRegistration(ctx context.Context, req otp.VerifyRequest) (*AuthResult, *otp.VerifyResult, error) {
	req.Purpose = domain.PurposeRegistration
	res, err := s.otps.Verify(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if !res.Valid {
		return nil, res, nil
	}

	form, err := userDataFromMetadata(res.Metadata)
	if err != nil {
		return nil, nil, err
	}

	// Re-asserted under the lost race: another registration for the same
	// identifiers may have completed while this code was pending.
	var phone string
	if form.PhoneNumber != nil {
		phone = *form.PhoneNumber
	}
	if err := s.checkAvailable(ctx, form.Email, phone); err != nil {
		return nil, nil, err
	}

	now := time.Now()
	u := &domain.User{
		UserID:               id.New(),
		Email:                form.Email,
		PhoneNumber:          form.PhoneNumber,
		FullName:             form.FullName,
		Gender:               form.Gender,
		InterestedIn:         form.InterestedIn,
		DOB:                  form.DOB,
		Hometown:             form.Hometown,
		Height:               form.Height,
		Religion:             form.Religion,
		Language:             form.Language,
		Ethnicity:            form.Ethnicity,
		SchoolName:           form.SchoolName,
		Education:            form.Education,
		JobTitle:             form.JobTitle,
		CompanyName:          form.CompanyName,
		SocialHandle:         form.SocialHandle,
		SocialHandlePlatform: form.SocialHandlePlatform,
		Drinking:             form.Drinking,
		Smoking:              form.Smoking,
		IceBreakers1:         form.IceBreakers1,
		IceBreakers2:         form.IceBreakers2,
		IceBreakers3:         form.IceBreakers3,
		PoliticalAffiliation: form.PoliticalAffiliation,
		Images:               form.Images,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.users.Put(ctx, u); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}
	slog.Info("user registered", "user_id", u.UserID)

	sess, err := s.tokens.IssueSession(ctx, u.UserID)
	if err != nil {
		return nil, nil, err
	}
	return &AuthResult{User: u, Session: sess}, res, nil
}

// Login looks up the account and issues a login OTP carrying the user id.
func (s *service) Login(ctx context.Context, req LoginRequest) (*otp.IssueResult, error) {
	u, phone, email, err := s.lookup(ctx, req.PhoneNumber, req.Email)
	if err != nil {
		return nil, err
	}
	// Deliver to the account's addresses, not just what the client typed, so
	// the email fallback path works when login is requested by phone alone.
	if email == "" {
		email = u.Email
	}
	return s.otps.Issue(ctx, otp.IssueRequest{
		PhoneNumber: phone,
		Email:       email,
		Purpose:     domain.PurposeLogin,
		Metadata:    map[string]interface{}{metaUserID: u.UserID},
	})
}

func (s *service) VerifyLogin(ctx context.Context, req otp.VerifyRequest) (*AuthResult, *otp.VerifyResult, error) {
	req.Purpose = domain.PurposeLogin
	res, err := s.otps.Verify(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if !res.Valid {
		return nil, res, nil
	}

	userID, _ := res.Metadata[metaUserID].(string)
	if userID == "" {
		return nil, nil, fmt.Errorf("login otp carries no user reference: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.tokens.IssueSession(ctx, u.UserID)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("user logged in", "user_id", u.UserID)
	return &AuthResult{User: u, Session: sess}, res, nil
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.Get(ctx, userID)
}

// lookup resolves the account for a login request by phone first, then email.
func (s *service) lookup(ctx context.Context, rawPhone, rawEmail string) (u *domain.User, phone, email string, err error) {
	if rawPhone != "" {
		p, ok := identifier.NormalizePhone(rawPhone)
		if !ok {
			return nil, "", "", fmt.Errorf("invalid phone number: %w", domain.ErrBadRequest)
		}
		phone = p
	}
	if rawEmail != "" {
		e, ok := identifier.NormalizeEmail(rawEmail)
		if !ok {
			return nil, "", "", fmt.Errorf("invalid email address: %w", domain.ErrBadRequest)
		}
		email = e
	}

	switch {
	case phone != "":
		u, err = s.users.GetByPhone(ctx, phone)
	case email != "":
		u, err = s.users.GetByEmail(ctx, email)
	default:
		return nil, "", "", fmt.Errorf("phone_number or email required: %w", domain.ErrBadRequest)
	}
	if err != nil {
		return nil, "", "", err
	}
	return u, phone, email, nil
}

// checkAvailable rejects when either identifier already belongs to an account.
func (s *service) checkAvailable(ctx context.Context, email, phone string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	if phone != "" {
		if _, err := s.users.GetByPhone(ctx, phone); err == nil {
			return fmt.Errorf("phone number already registered: %w", domain.ErrConflict)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	return nil
}

// userDataMetadata round-trips the form through JSON into the loosely typed
// shape the OTP store persists.
func userDataMetadata(req domain.CreateUserRequest) (map[string]interface{}, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return map[string]interface{}{metaUserData: m}, nil
}

func userDataFromMetadata(meta map[string]interface{}) (*domain.CreateUserRequest, error) {
	data, ok := meta[metaUserData]
	if !ok {
		return nil, fmt.Errorf("registration otp carries no form data: %w", domain.ErrBadRequest)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var form domain.CreateUserRequest
	if err := json.Unmarshal(raw, &form); err != nil {
		return nil, fmt.Errorf("decode stashed registration form: %w", err)
	}
	return &form, nil
}
