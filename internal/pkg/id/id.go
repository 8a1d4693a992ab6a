package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a fresh ULID. Sorting by ID sorts by creation time, which
// keeps OTP and token records scannable in issue order.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
