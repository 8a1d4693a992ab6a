package delivery

import (
	"context"
	"errors"
	"fmt"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// Dispatch describes how a passcode was delivered. Delegated means the SMS
// provider generated the code itself and owns the comparison, so the caller
// must store a delegated-code record instead of a literal one.
type Dispatch struct {
	Channel   Channel
	Delegated bool
}

// CheckResult is the outcome of a hosted (delegated) code check.
type CheckResult struct {
	Valid  bool
	Status string
}

// Mailer sends OTP emails.
type Mailer interface {
	SendEmail(to, subject, htmlBody string) error
}

// SMSSender publishes a literal-code SMS directly (AWS SNS backend).
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// DelegatedVerifier is a hosted verify service (Twilio Verify backend): it
// generates and delivers the code on StartVerification and checks candidate
// codes on CheckCode.
type DelegatedVerifier interface {
	StartVerification(ctx context.Context, phone string) error
	CheckCode(ctx context.Context, phone, code string) (CheckResult, error)
}

// Dispatcher abstracts outbound OTP delivery. Exactly one of sms/verifier is
// configured as the SMS backend; both may be nil for an email-only deployment.
// Clients are constructed once at startup and shared.
type Dispatcher struct {
	mailer        Mailer
	sms           SMSSender
	verifier      DelegatedVerifier
	expiryMinutes int
}

func NewDispatcher(mailer Mailer, sms SMSSender, verifier DelegatedVerifier, expiryMinutes int) *Dispatcher {
	return &Dispatcher{mailer: mailer, sms: sms, verifier: verifier, expiryMinutes: expiryMinutes}
}

// SendCode delivers a passcode to phone over SMS. When the provider reports
// the destination cannot receive the message (unverified or restricted) and an
// email address is available, delivery silently falls back to email with the
// same code; any other failure propagates.
func (d *Dispatcher) SendCode(ctx context.Context, phone, email, code string) (Dispatch, error) {
	if phone == "" {
		if err := d.SendEmailCode(email, code); err != nil {
			return Dispatch{}, err
		}
		return Dispatch{Channel: ChannelEmail}, nil
	}

	var err error
	switch {
	case d.verifier != nil:
		if err = d.verifier.StartVerification(ctx, phone); err == nil {
			return Dispatch{Channel: ChannelSMS, Delegated: true}, nil
		}
	case d.sms != nil:
		if err = d.sms.SendSMS(ctx, phone, smsBody(code)); err == nil {
			return Dispatch{Channel: ChannelSMS}, nil
		}
		err = &Error{Kind: KindSendFailed, Provider: "sns", Err: err}
	default:
		err = &Error{Kind: KindProviderConfig, Provider: "sms", Err: errors.New("no SMS backend configured")}
	}

	if KindOf(err).Fallbackable() && email != "" {
		if emailErr := d.SendEmailCode(email, code); emailErr != nil {
			return Dispatch{}, emailErr
		}
		return Dispatch{Channel: ChannelEmail}, nil
	}
	return Dispatch{}, err
}

// SendEmailCode delivers a passcode directly to an email address. Used when
// the OTP identifier itself is an email, and as the SMS fallback path.
func (d *Dispatcher) SendEmailCode(email, code string) error {
	if email == "" {
		return &Error{Kind: KindInvalidDestination, Provider: "smtp", Err: errors.New("no destination address")}
	}
	if err := d.mailer.SendEmail(email, emailSubject, emailBody(code, d.expiryMinutes)); err != nil {
		return &Error{Kind: KindSendFailed, Provider: "smtp", Err: err}
	}
	return nil
}

// CheckDelegated routes a candidate code to the hosted verify service's check
// endpoint. Only meaningful for records issued in delegated mode.
func (d *Dispatcher) CheckDelegated(ctx context.Context, phone, code string) (CheckResult, error) {
	if d.verifier == nil {
		return CheckResult{}, &Error{Kind: KindProviderConfig, Provider: "sms", Err: errors.New("no hosted verify backend configured")}
	}
	return d.verifier.CheckCode(ctx, phone, code)
}

const emailSubject = "Your OTP Code - Verification"

func emailBody(code string, expiryMinutes int) string {
	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">OTP Verification</h2>
  <p>Your OTP code is:</p>
  <div style="background: #f4f4f4; padding: 20px; text-align: center; margin: 20px 0; border-radius: 5px;">
    <h1 style="color: #007bff; font-size: 32px; margin: 0; letter-spacing: 5px;">%s</h1>
  </div>
  <p>This OTP is valid for %d minutes.</p>
  <p style="color: #666; font-size: 12px; margin-top: 30px;">If you didn't request this OTP, please ignore this email.</p>
</div>`, code, expiryMinutes)
}

func smsBody(code string) string {
	return "Your verification code: " + code
}
