package http

import (
	"github.com/otp-auth-api/internal/infrastructure/delivery"
	"github.com/otp-auth-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/otp-auth-api/internal/infrastructure/jwt"
	s3infra "github.com/otp-auth-api/internal/infrastructure/s3"
)

// Deps holds all infrastructure dependencies for the router. Everything here
// is constructed once at process start and shared.
type Deps struct {
	UserRepo    *dynamo.UserRepo
	OTPRepo     *dynamo.OTPRepo
	TokenRepo   *dynamo.TokenRepo
	Dispatcher  *delivery.Dispatcher
	JWTProvider *jwtinfra.Provider
	S3Store     *s3infra.Store
}
