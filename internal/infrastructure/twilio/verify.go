package twilio

import (
	"context"
	"errors"
	"fmt"

	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/infrastructure/delivery"
	twiliogo "github.com/twilio/twilio-go"
	twclient "github.com/twilio/twilio-go/client"
	verifyv2 "github.com/twilio/twilio-go/rest/verify/v2"
)

// Twilio REST error codes mapped onto the delivery error-kind taxonomy.
const (
	codeInvalidTo          = 21211 // 'To' number is not a valid phone number
	codeRegionNotEnabled   = 21408 // SMS permission not enabled for the region
	codeUnverifiedTrialTo  = 21608 // trial account can only message verified numbers
	codeInvalidVerifyParam = 60200 // invalid parameter (bad service SID)
)

// Verifier delegates OTP send and check to a Twilio Verify service: the
// provider generates the code, delivers it, and owns the comparison.
type Verifier struct {
	client     *twiliogo.RestClient
	serviceSID string
}

func NewVerifier(cfg *config.Config) (*Verifier, error) {
	if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
		return nil, errors.New("twilio credentials are not configured")
	}
	if cfg.TwilioVerifyServiceSID == "" {
		return nil, errors.New("TWILIO_VERIFY_SERVICE_SID is not configured")
	}
	c := twiliogo.NewRestClientWithParams(twiliogo.ClientParams{
		Username: cfg.TwilioAccountSID,
		Password: cfg.TwilioAuthToken,
	})
	return &Verifier{client: c, serviceSID: cfg.TwilioVerifyServiceSID}, nil
}

// StartVerification asks the Verify service to generate and deliver a code to
// phone over SMS. Failures come back classified as *delivery.Error.
// The twilio-go REST client does not take a context; ctx is accepted for
// interface uniformity with the other senders.
func (v *Verifier) StartVerification(_ context.Context, phone string) error {
	params := &verifyv2.CreateVerificationParams{}
	params.SetTo(phone)
	params.SetChannel("sms")

	if _, err := v.client.VerifyV2.CreateVerification(v.serviceSID, params); err != nil {
		return classify(err)
	}
	return nil
}

// CheckCode submits a candidate code to the Verify service's check endpoint.
func (v *Verifier) CheckCode(_ context.Context, phone, code string) (delivery.CheckResult, error) {
	params := &verifyv2.CreateVerificationCheckParams{}
	params.SetTo(phone)
	params.SetCode(code)

	out, err := v.client.VerifyV2.CreateVerificationCheck(v.serviceSID, params)
	if err != nil {
		return delivery.CheckResult{}, classify(err)
	}
	status := ""
	if out.Status != nil {
		status = *out.Status
	}
	return delivery.CheckResult{Valid: status == "approved", Status: status}, nil
}

func classify(err error) error {
	var restErr *twclient.TwilioRestError
	if !errors.As(err, &restErr) {
		return &delivery.Error{Kind: delivery.KindSendFailed, Provider: "twilio", Err: err}
	}
	kind := delivery.KindSendFailed
	switch restErr.Code {
	case codeUnverifiedTrialTo:
		kind = delivery.KindDestinationUnverified
	case codeRegionNotEnabled:
		kind = delivery.KindDestinationRestricted
	case codeInvalidTo:
		kind = delivery.KindInvalidDestination
	case codeInvalidVerifyParam:
		kind = delivery.KindProviderConfig
	}
	return &delivery.Error{Kind: kind, Provider: "twilio", Err: fmt.Errorf("code %d: %s", restErr.Code, restErr.Message)}
}
