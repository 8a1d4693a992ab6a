package delivery

import (
	"errors"
	"fmt"
)

// ErrorKind classifies delivery failures into a stable taxonomy so callers
// never have to sniff provider error messages.
type ErrorKind string

const (
	// KindDestinationUnverified: the provider refuses the destination because
	// it has not been verified with the provider (trial-account restriction).
	KindDestinationUnverified ErrorKind = "destination_unverified"
	// KindDestinationRestricted: sending to the destination's region or number
	// class is not enabled on the provider account.
	KindDestinationRestricted ErrorKind = "destination_restricted"
	// KindInvalidDestination: the provider rejected the address/number itself.
	KindInvalidDestination ErrorKind = "invalid_destination"
	// KindProviderConfig: credentials or service configuration are wrong.
	// Not user-correctable; surfaced as a fault.
	KindProviderConfig ErrorKind = "provider_config"
	// KindSendFailed: any other provider failure.
	KindSendFailed ErrorKind = "send_failed"
)

// Fallbackable reports whether a failure of this kind on the SMS channel
// should trigger redelivery via email when an email address is available.
func (k ErrorKind) Fallbackable() bool {
	return k == KindDestinationUnverified || k == KindDestinationRestricted
}

// Error is a classified delivery failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s delivery failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the ErrorKind from err, or KindSendFailed if err carries none.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindSendFailed
}
