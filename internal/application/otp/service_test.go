package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/infrastructure/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockOTPStore struct{ mock.Mock }

func (m *mockOTPStore) Put(ctx context.Context, rec *domain.OTPRecord) error {
	return m.Called(ctx, rec).Error(0)
}
func (m *mockOTPStore) GetPending(ctx context.Context, identifier string, purpose domain.OTPPurpose) (*domain.OTPRecord, error) {
	args := m.Called(ctx, identifier, purpose)
	if r, _ := args.Get(0).(*domain.OTPRecord); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOTPStore) DeleteUnverified(ctx context.Context, identifier string, purpose domain.OTPPurpose) error {
	return m.Called(ctx, identifier, purpose).Error(0)
}
func (m *mockOTPStore) Update(ctx context.Context, otpID string, updates map[string]interface{}) error {
	return m.Called(ctx, otpID, updates).Error(0)
}
func (m *mockOTPStore) Delete(ctx context.Context, otpID string) error {
	return m.Called(ctx, otpID).Error(0)
}
func (m *mockOTPStore) HasVerified(ctx context.Context, identifier string) (bool, error) {
	args := m.Called(ctx, identifier)
	return args.Bool(0), args.Error(1)
}

type mockDispatcher struct{ mock.Mock }

func (m *mockDispatcher) SendCode(ctx context.Context, phone, email, code string) (delivery.Dispatch, error) {
	args := m.Called(ctx, phone, email, code)
	return args.Get(0).(delivery.Dispatch), args.Error(1)
}
func (m *mockDispatcher) SendEmailCode(email, code string) error {
	return m.Called(email, code).Error(0)
}
func (m *mockDispatcher) CheckDelegated(ctx context.Context, phone, code string) (delivery.CheckResult, error) {
	args := m.Called(ctx, phone, code)
	return args.Get(0).(delivery.CheckResult), args.Error(1)
}

func newService(store *mockOTPStore, d *mockDispatcher) Service {
	return NewService(store, d, 6, 10, 3, 60)
}

func hashOf(t *testing.T, code string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func pendingRecord(code domain.OTPCode) *domain.OTPRecord {
	now := time.Now()
	return &domain.OTPRecord{
		OTPID:      "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		Identifier: "+923001234567",
		Purpose:    domain.PurposeLogin,
		Code:       code,
		ExpiresAt:  now.Add(10 * time.Minute).Unix(),
		CreatedAt:  now.Add(-5 * time.Minute),
		UpdatedAt:  now.Add(-5 * time.Minute),
	}
}

// --- issuance ---

func TestIssue_LiteralSMS_PersistsHashedCode(t *testing.T) {
	store := &mockOTPStore{}
	d := &mockDispatcher{}
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(nil, domain.ErrNotFound)
	store.On("DeleteUnverified", mock.Anything, "+923001234567", domain.PurposeLogin).Return(nil)
	var sentCode string
	d.On("SendCode", mock.Anything, "+923001234567", "", mock.Anything).
		Run(func(args mock.Arguments) { sentCode = args.String(3) }).
		Return(delivery.Dispatch{Channel: delivery.ChannelSMS}, nil)
	var stored *domain.OTPRecord
	store.On("Put", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.OTPRecord) }).
		Return(nil)

	res, err := newService(store, d).Issue(context.Background(), IssueRequest{
		PhoneNumber: "03001234567",
		Purpose:     domain.PurposeLogin,
	})

	require.NoError(t, err)
	assert.Equal(t, "+923001234567", res.Identifier)
	assert.Equal(t, delivery.ChannelSMS, res.Channel)

	require.NotNil(t, stored)
	assert.Len(t, sentCode, 6)
	assert.Equal(t, 0, stored.Attempts)
	assert.False(t, stored.Verified)
	assert.False(t, stored.Code.Delegated)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.Code.Hash), []byte(sentCode)))
	assert.Greater(t, stored.TTLAt, stored.ExpiresAt)
	store.AssertExpectations(t)
}

func TestIssue_DelegatedSMS_StoresSentinel(t *testing.T) {
	store := &mockOTPStore{}
	d := &mockDispatcher{}
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(nil, domain.ErrNotFound)
	store.On("DeleteUnverified", mock.Anything, "+923001234567", domain.PurposeLogin).Return(nil)
	d.On("SendCode", mock.Anything, "+923001234567", "", mock.Anything).
		Return(delivery.Dispatch{Channel: delivery.ChannelSMS, Delegated: true}, nil)
	var stored *domain.OTPRecord
	store.On("Put", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.OTPRecord) }).
		Return(nil)

	_, err := newService(store, d).Issue(context.Background(), IssueRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
	})

	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.Code.Delegated)
	assert.Empty(t, stored.Code.Hash)
}

func TestIssue_EmailIdentifier(t *testing.T) {
	store := &mockOTPStore{}
	d := &mockDispatcher{}
	store.On("GetPending", mock.Anything, "a@b.com", domain.PurposeRegistration).Return(nil, domain.ErrNotFound)
	store.On("DeleteUnverified", mock.Anything, "a@b.com", domain.PurposeRegistration).Return(nil)
	d.On("SendEmailCode", "a@b.com", mock.Anything).Return(nil)
	var stored *domain.OTPRecord
	store.On("Put", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.OTPRecord) }).
		Return(nil)

	meta := map[string]interface{}{"user_data": map[string]interface{}{"email": "a@b.com"}}
	res, err := newService(store, d).Issue(context.Background(), IssueRequest{
		Email:    "A@B.com",
		Purpose:  domain.PurposeRegistration,
		Metadata: meta,
	})

	require.NoError(t, err)
	assert.Equal(t, delivery.ChannelEmail, res.Channel)
	require.NotNil(t, stored)
	assert.Equal(t, meta, stored.Metadata)
}

func TestIssue_InvalidIdentifier(t *testing.T) {
	s := newService(&mockOTPStore{}, &mockDispatcher{})

	_, err := s.Issue(context.Background(), IssueRequest{PhoneNumber: "12345", Purpose: domain.PurposeLogin})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = s.Issue(context.Background(), IssueRequest{Purpose: domain.PurposeLogin})
	assert.ErrorIs(t, err, domain.ErrBadRequest)

	_, err = s.Issue(context.Background(), IssueRequest{PhoneNumber: "03001234567", Purpose: "password_reset"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestIssue_ThrottledWhileRecentPendingExists(t *testing.T) {
	store := &mockOTPStore{}
	rec := pendingRecord(domain.LiteralCode("x"))
	rec.CreatedAt = time.Now().Add(-10 * time.Second)
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(rec, nil)

	_, err := newService(store, &mockDispatcher{}).Issue(context.Background(), IssueRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
	})

	assert.ErrorIs(t, err, domain.ErrTooManyRequests)
	store.AssertNotCalled(t, "DeleteUnverified", mock.Anything, mock.Anything, mock.Anything)
}

func TestIssue_ReissueAfterCooldownInvalidatesPrior(t *testing.T) {
	store := &mockOTPStore{}
	d := &mockDispatcher{}
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).
		Return(pendingRecord(domain.LiteralCode("x")), nil)
	store.On("DeleteUnverified", mock.Anything, "+923001234567", domain.PurposeLogin).Return(nil)
	d.On("SendCode", mock.Anything, "+923001234567", "", mock.Anything).
		Return(delivery.Dispatch{Channel: delivery.ChannelSMS}, nil)
	store.On("Put", mock.Anything, mock.Anything).Return(nil)

	_, err := newService(store, d).Issue(context.Background(), IssueRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
	})

	require.NoError(t, err)
	store.AssertCalled(t, "DeleteUnverified", mock.Anything, "+923001234567", domain.PurposeLogin)
}

func TestIssue_DeliveryFailureDoesNotPersist(t *testing.T) {
	store := &mockOTPStore{}
	d := &mockDispatcher{}
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(nil, domain.ErrNotFound)
	store.On("DeleteUnverified", mock.Anything, "+923001234567", domain.PurposeLogin).Return(nil)
	d.On("SendCode", mock.Anything, "+923001234567", "", mock.Anything).
		Return(delivery.Dispatch{}, &delivery.Error{Kind: delivery.KindSendFailed, Provider: "sns", Err: errors.New("down")})

	_, err := newService(store, d).Issue(context.Background(), IssueRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
	})

	require.Error(t, err)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

// --- verification ---

func TestVerify_BadCodeShape_NoStoreTouch(t *testing.T) {
	store := &mockOTPStore{}
	s := newService(store, &mockDispatcher{})

	for _, code := range []string{"", "12345", "1234567", "12a456"} {
		res, err := s.Verify(context.Background(), VerifyRequest{
			PhoneNumber: "+923001234567",
			Purpose:     domain.PurposeLogin,
			Code:        code,
		})
		require.NoError(t, err)
		assert.False(t, res.Valid)
		assert.Equal(t, ReasonInvalidInput, res.Reason)
	}
	store.AssertNotCalled(t, "GetPending", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerify_NotFound(t *testing.T) {
	store := &mockOTPStore{}
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(nil, domain.ErrNotFound)

	res, err := newService(store, &mockDispatcher{}).Verify(context.Background(), VerifyRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
		Code:        "123456",
	})

	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, ReasonNotFound, res.Reason)
}

func TestVerify_Expired_DeletesRecord(t *testing.T) {
	store := &mockOTPStore{}
	rec := pendingRecord(domain.LiteralCode(hashOf(t, "123456")))
	rec.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(rec, nil)
	store.On("Delete", mock.Anything, rec.OTPID).Return(nil)

	res, err := newService(store, &mockDispatcher{}).Verify(context.Background(), VerifyRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
		Code:        "123456",
	})

	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, res.Reason)
	store.AssertExpectations(t)
}

func TestVerify_MismatchCountsDown(t *testing.T) {
	store := &mockOTPStore{}
	rec := pendingRecord(domain.LiteralCode(hashOf(t, "654321")))
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(rec, nil)
	store.On("Update", mock.Anything, rec.OTPID, mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["attempts"] == 1
	})).Return(nil)

	res, err := newService(store, &mockDispatcher{}).Verify(context.Background(), VerifyRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
		Code:        "000000",
	})

	require.NoError(t, err)
	assert.Equal(t, ReasonMismatch, res.Reason)
	assert.Equal(t, 2, res.AttemptsRemaining)
	store.AssertExpectations(t)
}

func TestVerify_ThirdWrongAttemptExhaustsAndDeletes(t *testing.T) {
	store := &mockOTPStore{}
	rec := pendingRecord(domain.LiteralCode(hashOf(t, "654321")))
	rec.Attempts = 2
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(rec, nil)
	store.On("Delete", mock.Anything, rec.OTPID).Return(nil)

	res, err := newService(store, &mockDispatcher{}).Verify(context.Background(), VerifyRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
		Code:        "000000",
	})

	require.NoError(t, err)
	assert.Equal(t, ReasonAttemptsExhausted, res.Reason)
	store.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestVerify_AlreadyExhaustedRecordIsDeleted(t *testing.T) {
	store := &mockOTPStore{}
	rec := pendingRecord(domain.LiteralCode(hashOf(t, "654321")))
	rec.Attempts = 3
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(rec, nil)
	store.On("Delete", mock.Anything, rec.OTPID).Return(nil)

	res, err := newService(store, &mockDispatcher{}).Verify(context.Background(), VerifyRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
		Code:        "654321",
	})

	require.NoError(t, err)
	assert.Equal(t, ReasonAttemptsExhausted, res.Reason)
}

func TestVerify_Match_MarksVerifiedAndReturnsMetadata(t *testing.T) {
	store := &mockOTPStore{}
	rec := pendingRecord(domain.LiteralCode(hashOf(t, "123456")))
	rec.Metadata = map[string]interface{}{"user_data": map[string]interface{}{"first_name": "Ali"}}
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(rec, nil)
	store.On("Update", mock.Anything, rec.OTPID, mock.MatchedBy(func(u map[string]interface{}) bool {
		return u["verified"] == true
	})).Return(nil)

	res, err := newService(store, &mockDispatcher{}).Verify(context.Background(), VerifyRequest{
		PhoneNumber: "0300 1234567",
		Purpose:     domain.PurposeLogin,
		Code:        "123456",
	})

	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, rec.Metadata, res.Metadata)
	store.AssertExpectations(t)
}

func TestVerify_DelegatedRoutesToProviderCheck(t *testing.T) {
	store := &mockOTPStore{}
	d := &mockDispatcher{}
	rec := pendingRecord(domain.DelegatedCode())
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(rec, nil)
	d.On("CheckDelegated", mock.Anything, "+923001234567", "123456").
		Return(delivery.CheckResult{Valid: true, Status: "approved"}, nil)
	store.On("Update", mock.Anything, rec.OTPID, mock.Anything).Return(nil)

	res, err := newService(store, d).Verify(context.Background(), VerifyRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
		Code:        "123456",
	})

	require.NoError(t, err)
	assert.True(t, res.Valid)
	d.AssertExpectations(t)
}

func TestVerify_DelegatedRejectionIsMismatch(t *testing.T) {
	store := &mockOTPStore{}
	d := &mockDispatcher{}
	rec := pendingRecord(domain.DelegatedCode())
	store.On("GetPending", mock.Anything, "+923001234567", domain.PurposeLogin).Return(rec, nil)
	d.On("CheckDelegated", mock.Anything, "+923001234567", "000000").
		Return(delivery.CheckResult{Valid: false, Status: "pending"}, nil)
	store.On("Update", mock.Anything, rec.OTPID, mock.Anything).Return(nil)

	res, err := newService(store, d).Verify(context.Background(), VerifyRequest{
		PhoneNumber: "+923001234567",
		Purpose:     domain.PurposeLogin,
		Code:        "000000",
	})

	require.NoError(t, err)
	assert.Equal(t, ReasonMismatch, res.Reason)
	assert.Equal(t, 2, res.AttemptsRemaining)
}

// --- verified-status query ---

func TestIsIdentifierVerified_NormalizesFirst(t *testing.T) {
	store := &mockOTPStore{}
	store.On("HasVerified", mock.Anything, "+923001234567").Return(true, nil)

	ok, err := newService(store, &mockDispatcher{}).IsIdentifierVerified(context.Background(), "03001234567")

	require.NoError(t, err)
	assert.True(t, ok)
	store.AssertExpectations(t)
}

func TestIsIdentifierVerified_RejectsGarbage(t *testing.T) {
	_, err := newService(&mockOTPStore{}, &mockDispatcher{}).IsIdentifierVerified(context.Background(), "not-an-identifier")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
