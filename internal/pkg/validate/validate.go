package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom rules are registered
// during init, before the first call to Struct.
var v = validator.New()

func init() {
	// "adult": the field is a 2006-01-02 date at least 18 years in the past.
	_ = v.RegisterValidation("adult", func(fl validator.FieldLevel) bool {
		dob, err := time.Parse("2006-01-02", fl.Field().String())
		if err != nil {
			return false
		}
		return !dob.After(time.Now().AddDate(-18, 0, 0))
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}
