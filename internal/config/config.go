package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath      string
	JWTPublicKeyPath       string
	AccessTokenExpiryDays  int
	RefreshTokenExpiryDays int

	OTPDigits           int
	OTPExpiryMinutes    int
	OTPMaxAttempts      int
	OTPRetentionMinutes int // how long an expired OTP record is kept before TTL reaping

	SMTPHost     string
	SMTPPort     string
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string

	// SMSProvider selects the SMS backend: "verify" (Twilio Verify, delegated
	// code check) or "sns" (direct publish, literal code in the message body).
	SMSProvider            string
	SNSRegion              string
	TwilioAccountSID       string
	TwilioAuthToken        string
	TwilioVerifyServiceSID string

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users  string
	OTPs   string
	Tokens string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Users:  getEnv("DYNAMO_TABLE_USERS", "users"),
			OTPs:   getEnv("DYNAMO_TABLE_OTPS", "otps"),
			Tokens: getEnv("DYNAMO_TABLE_TOKENS", "tokens"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "profile-images"),

		JWTPrivateKeyPath:      getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:       getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		AccessTokenExpiryDays:  getEnvInt("ACCESS_TOKEN_EXPIRY_DAYS", 7),
		RefreshTokenExpiryDays: getEnvInt("REFRESH_TOKEN_EXPIRY_DAYS", 30),

		OTPDigits:           getEnvInt("OTP_DIGITS", 6),
		OTPExpiryMinutes:    getEnvInt("OTP_EXPIRY_MINUTES", 10),
		OTPMaxAttempts:      getEnvInt("OTP_MAX_ATTEMPTS", 3),
		OTPRetentionMinutes: getEnvInt("OTP_RETENTION_MINUTES", 60),

		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),

		SMSProvider:            getEnv("SMS_PROVIDER", "verify"),
		SNSRegion:              getEnv("SNS_REGION", "us-east-1"),
		TwilioAccountSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:        getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioVerifyServiceSID: getEnv("TWILIO_VERIFY_SERVICE_SID", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
