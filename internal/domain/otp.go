package domain

import "time"

// OTPPurpose scopes an OTP to the action it authorizes. Uniqueness of pending
// records and the interpretation of metadata are both per (identifier, purpose).
type OTPPurpose string

const (
	PurposePhoneVerification OTPPurpose = "phone_verification"
	PurposeEmailVerification OTPPurpose = "email_verification"
	PurposeRegistration      OTPPurpose = "registration"
	PurposeLogin             OTPPurpose = "login"
)

func (p OTPPurpose) Valid() bool {
	switch p {
	case PurposePhoneVerification, PurposeEmailVerification, PurposeRegistration, PurposeLogin:
		return true
	}
	return false
}

// OTPCode is a tagged variant. Either Hash holds the bcrypt hash of a literal
// N-digit secret, or Delegated is set and the SMS provider's hosted verify
// service owns the secret and performs the comparison.
type OTPCode struct {
	Hash      string `dynamodbav:"hash" json:"-"`
	Delegated bool   `dynamodbav:"delegated" json:"-"`
}

func LiteralCode(hash string) OTPCode { return OTPCode{Hash: hash} }
func DelegatedCode() OTPCode          { return OTPCode{Delegated: true} }

// OTPRecord stores one issued passcode.
// PK: otp_id. GSI: identifier-index (PK identifier, SK purpose).
// At most one unverified record may exist per (identifier, purpose); issuance
// deletes prior unverified records before creating a new one.
// TTLAt is expires_at plus a retention window so an expired record survives
// long enough to report Expired before DynamoDB reaps it.
type OTPRecord struct {
	OTPID      string                 `dynamodbav:"otp_id" json:"otp_id"`
	Identifier string                 `dynamodbav:"identifier" json:"identifier"`
	Purpose    OTPPurpose             `dynamodbav:"purpose" json:"purpose"`
	Code       OTPCode                `dynamodbav:"code" json:"-"`
	ExpiresAt  int64                  `dynamodbav:"expires_at" json:"expires_at"`
	Attempts   int                    `dynamodbav:"attempts" json:"attempts"`
	Verified   bool                   `dynamodbav:"verified" json:"verified"`
	Metadata   map[string]interface{} `dynamodbav:"metadata,omitempty" json:"-"`
	TTLAt      int64                  `dynamodbav:"ttl_at" json:"-"`
	CreatedAt  time.Time              `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt  time.Time              `dynamodbav:"updated_at" json:"updated_at"`
}

// Expired reports whether the record is past its expiry at the given instant.
func (r *OTPRecord) Expired(now time.Time) bool {
	return now.Unix() > r.ExpiresAt
}
