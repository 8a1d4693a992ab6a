package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/infrastructure/delivery"
	"github.com/otp-auth-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/otp-auth-api/internal/infrastructure/jwt"
	s3infra "github.com/otp-auth-api/internal/infrastructure/s3"
	"github.com/otp-auth-api/internal/infrastructure/smtp"
	"github.com/otp-auth-api/internal/infrastructure/sns"
	"github.com/otp-auth-api/internal/infrastructure/twilio"
	transporthttp "github.com/otp-auth-api/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()
	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("JWT provider: %v", err)
	}

	mailer := smtp.NewMailer(cfg)

	// SMS backend: hosted verify (delegated code check) or SNS direct publish.
	var (
		smsSender sns.SMSSender
		verifier  delivery.DelegatedVerifier
	)
	switch cfg.SMSProvider {
	case "verify":
		if v, err := twilio.NewVerifier(cfg); err == nil {
			verifier = v
		} else {
			log.Printf("WARN: hosted verify backend not available, phone OTP delivery disabled: %v", err)
		}
	case "sns":
		if sender, err := sns.NewSender(cfg); err == nil {
			smsSender = sender
		} else {
			log.Printf("WARN: SNS sender not available, phone OTP delivery disabled: %v", err)
		}
	default:
		log.Printf("WARN: unknown SMS_PROVIDER %q, SMS delivery disabled", cfg.SMSProvider)
	}
	dispatcher := delivery.NewDispatcher(mailer, smsSender, verifier, cfg.OTPExpiryMinutes)

	s3Store, err := s3infra.NewStore(ctx, cfg)
	if err != nil {
		log.Fatalf("S3 store: %v", err)
	}

	deps := &transporthttp.Deps{
		UserRepo:    dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		OTPRepo:     dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPs),
		TokenRepo:   dynamo.NewTokenRepo(dynamoClient, cfg.DynamoTables.Tokens),
		Dispatcher:  dispatcher,
		JWTProvider: jwtProvider,
		S3Store:     s3Store,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
