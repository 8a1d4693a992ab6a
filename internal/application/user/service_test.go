package user

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/token"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/infrastructure/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockUserStore) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockUserStore) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOTPService struct{ mock.Mock }

func (m *mockOTPService) Issue(ctx context.Context, req otp.IssueRequest) (*otp.IssueResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*otp.IssueResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPService) Verify(ctx context.Context, req otp.VerifyRequest) (*otp.VerifyResult, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*otp.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPService) IsIdentifierVerified(ctx context.Context, rawIdentifier string) (bool, error) {
	args := m.Called(ctx, rawIdentifier)
	return args.Bool(0), args.Error(1)
}

type mockTokenService struct{ mock.Mock }

func (m *mockTokenService) IssueSession(ctx context.Context, userID string) (*token.Session, error) {
	args := m.Called(ctx, userID)
	if s, _ := args.Get(0).(*token.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTokenService) Verify(ctx context.Context, tok string) (*token.VerifyResult, error) {
	args := m.Called(ctx, tok)
	if r, _ := args.Get(0).(*token.VerifyResult); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTokenService) Refresh(ctx context.Context, refreshToken string) (*token.Session, error) {
	args := m.Called(ctx, refreshToken)
	if s, _ := args.Get(0).(*token.Session); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTokenService) Revoke(ctx context.Context, tok string) error {
	return m.Called(ctx, tok).Error(0)
}
func (m *mockTokenService) RevokeAll(ctx context.Context, userID string) error {
	return m.Called(ctx, userID).Error(0)
}

// --- fixtures ---

func registrationForm() domain.CreateUserRequest {
	phone := "03001234567"
	return domain.CreateUserRequest{
		Email:        "Ali@Example.com",
		PhoneNumber:  &phone,
		FullName:     "Ali Khan",
		Gender:       "male",
		InterestedIn: "female",
		DOB:          "1995-06-15",
		Hometown:     "Lahore",
		Height:       178,
		Religion:     "islam",
		Language:     "urdu",
		Ethnicity:    "punjabi",
		Education:    "bachelors",
		Drinking:     "never",
		Smoking:      "never",
		IceBreakers1: "first",
		IceBreakers2: "second",
		IceBreakers3: "third",
		Images: []string{
			"https://cdn.example.com/1.jpg",
			"https://cdn.example.com/2.jpg",
			"https://cdn.example.com/3.jpg",
			"https://cdn.example.com/4.jpg",
		},
	}
}

func formMetadata(t *testing.T, form domain.CreateUserRequest) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(form)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	return map[string]interface{}{"user_data": m}
}

// --- registration ---

func TestRegister_IssuesOTPWithStashedForm(t *testing.T) {
	users := &mockUserStore{}
	otps := &mockOTPService{}
	users.On("GetByEmail", mock.Anything, "ali@example.com").Return(nil, domain.ErrNotFound)
	users.On("GetByPhone", mock.Anything, "+923001234567").Return(nil, domain.ErrNotFound)

	var issued otp.IssueRequest
	otps.On("Issue", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { issued = args.Get(1).(otp.IssueRequest) }).
		Return(&otp.IssueResult{OTPID: "o1", Identifier: "+923001234567", Purpose: domain.PurposeRegistration, Channel: delivery.ChannelSMS}, nil)

	res, err := NewService(users, otps, &mockTokenService{}).Register(context.Background(), registrationForm())

	require.NoError(t, err)
	assert.Equal(t, "o1", res.OTPID)
	assert.Equal(t, domain.PurposeRegistration, issued.Purpose)
	assert.Equal(t, "+923001234567", issued.PhoneNumber)
	assert.Equal(t, "ali@example.com", issued.Email)

	data, ok := issued.Metadata["user_data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ali@example.com", data["email"])
	assert.Equal(t, "Ali Khan", data["fullName"])
}

func TestRegister_RejectsIncompleteForm(t *testing.T) {
	form := registrationForm()
	form.FullName = ""

	_, err := NewService(&mockUserStore{}, &mockOTPService{}, &mockTokenService{}).Register(context.Background(), form)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRegister_RejectsTooFewImages(t *testing.T) {
	form := registrationForm()
	form.Images = form.Images[:2]

	_, err := NewService(&mockUserStore{}, &mockOTPService{}, &mockTokenService{}).Register(context.Background(), form)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRegister_RejectsMinor(t *testing.T) {
	form := registrationForm()
	form.DOB = "2015-01-01"

	_, err := NewService(&mockUserStore{}, &mockOTPService{}, &mockTokenService{}).Register(context.Background(), form)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestRegister_EmailTaken(t *testing.T) {
	users := &mockUserStore{}
	users.On("GetByEmail", mock.Anything, "ali@example.com").Return(&domain.User{UserID: "u1"}, nil)

	_, err := NewService(users, &mockOTPService{}, &mockTokenService{}).Register(context.Background(), registrationForm())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestRegister_PhoneTaken(t *testing.T) {
	users := &mockUserStore{}
	users.On("GetByEmail", mock.Anything, "ali@example.com").Return(nil, domain.ErrNotFound)
	users.On("GetByPhone", mock.Anything, "+923001234567").Return(&domain.User{UserID: "u1"}, nil)

	_, err := NewService(users, &mockOTPService{}, &mockTokenService{}).Register(context.Background(), registrationForm())
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestVerifyRegistration_CreatesUserAndSession(t *testing.T) {
	users := &mockUserStore{}
	otps := &mockOTPService{}
	tokens := &mockTokenService{}

	form := registrationForm()
	norm := "+923001234567"
	form.Email = "ali@example.com"
	form.PhoneNumber = &norm

	otps.On("Verify", mock.Anything, mock.MatchedBy(func(r otp.VerifyRequest) bool {
		return r.Purpose == domain.PurposeRegistration
	})).Return(&otp.VerifyResult{Valid: true, Metadata: formMetadata(t, form)}, nil)
	users.On("GetByEmail", mock.Anything, "ali@example.com").Return(nil, domain.ErrNotFound)
	users.On("GetByPhone", mock.Anything, norm).Return(nil, domain.ErrNotFound)

	var created *domain.User
	users.On("Put", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { created = args.Get(1).(*domain.User) }).
		Return(nil)
	tokens.On("IssueSession", mock.Anything, mock.Anything).
		Return(&token.Session{AccessToken: "a", RefreshToken: "r"}, nil)

	auth, res, err := NewService(users, otps, tokens).VerifyRegistration(context.Background(), otp.VerifyRequest{
		PhoneNumber: norm,
		Code:        "123456",
	})

	require.NoError(t, err)
	require.NotNil(t, auth)
	assert.True(t, res.Valid)

	require.NotNil(t, created)
	assert.NotEmpty(t, created.UserID)
	assert.Equal(t, "ali@example.com", created.Email)
	assert.Equal(t, "Ali Khan", created.FullName)
	assert.Len(t, created.Images, 4)
	assert.Equal(t, "a", auth.Session.AccessToken)
	assert.Equal(t, created.UserID, auth.User.UserID)
}

func TestVerifyRegistration_InvalidCodePassesReasonThrough(t *testing.T) {
	users := &mockUserStore{}
	otps := &mockOTPService{}
	otps.On("Verify", mock.Anything, mock.Anything).
		Return(&otp.VerifyResult{Reason: otp.ReasonMismatch, AttemptsRemaining: 2}, nil)

	auth, res, err := NewService(users, otps, &mockTokenService{}).VerifyRegistration(context.Background(), otp.VerifyRequest{
		PhoneNumber: "+923001234567",
		Code:        "000000",
	})

	require.NoError(t, err)
	assert.Nil(t, auth)
	assert.Equal(t, otp.ReasonMismatch, res.Reason)
	users.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- login ---

func TestLogin_ByPhoneIssuesLoginOTP(t *testing.T) {
	users := &mockUserStore{}
	otps := &mockOTPService{}
	users.On("GetByPhone", mock.Anything, "+923001234567").
		Return(&domain.User{UserID: "u1", Email: "ali@example.com"}, nil)

	var issued otp.IssueRequest
	otps.On("Issue", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { issued = args.Get(1).(otp.IssueRequest) }).
		Return(&otp.IssueResult{OTPID: "o1"}, nil)

	_, err := NewService(users, otps, &mockTokenService{}).Login(context.Background(), LoginRequest{PhoneNumber: "03001234567"})

	require.NoError(t, err)
	assert.Equal(t, domain.PurposeLogin, issued.Purpose)
	assert.Equal(t, "u1", issued.Metadata["user_id"])
	assert.Equal(t, "ali@example.com", issued.Email, "account email backs the delivery fallback")
}

func TestLogin_UnknownIdentifier(t *testing.T) {
	users := &mockUserStore{}
	users.On("GetByEmail", mock.Anything, "ghost@example.com").Return(nil, domain.ErrNotFound)

	_, err := NewService(users, &mockOTPService{}, &mockTokenService{}).Login(context.Background(), LoginRequest{Email: "ghost@example.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVerifyLogin_OpensSession(t *testing.T) {
	users := &mockUserStore{}
	otps := &mockOTPService{}
	tokens := &mockTokenService{}
	otps.On("Verify", mock.Anything, mock.MatchedBy(func(r otp.VerifyRequest) bool {
		return r.Purpose == domain.PurposeLogin
	})).Return(&otp.VerifyResult{Valid: true, Metadata: map[string]interface{}{"user_id": "u1"}}, nil)
	users.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1"}, nil)
	tokens.On("IssueSession", mock.Anything, "u1").Return(&token.Session{AccessToken: "a", RefreshToken: "r"}, nil)

	auth, res, err := NewService(users, otps, tokens).VerifyLogin(context.Background(), otp.VerifyRequest{
		PhoneNumber: "+923001234567",
		Code:        "123456",
	})

	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, "u1", auth.User.UserID)
	assert.Equal(t, "r", auth.Session.RefreshToken)
}

func TestVerifyLogin_ExpiredCodeDoesNotOpenSession(t *testing.T) {
	otps := &mockOTPService{}
	tokens := &mockTokenService{}
	otps.On("Verify", mock.Anything, mock.Anything).
		Return(&otp.VerifyResult{Reason: otp.ReasonExpired}, nil)

	auth, res, err := NewService(&mockUserStore{}, otps, tokens).VerifyLogin(context.Background(), otp.VerifyRequest{
		PhoneNumber: "+923001234567",
		Code:        "123456",
	})

	require.NoError(t, err)
	assert.Nil(t, auth)
	assert.Equal(t, otp.ReasonExpired, res.Reason)
	tokens.AssertNotCalled(t, "IssueSession", mock.Anything, mock.Anything)
}
