// Package apikeys issues per-user API keys for the upload endpoint.
package apikeys

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"

	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/httpapi"
)

const (
	// PrefixLength caps the email-derived key prefix.
	PrefixLength = 8
	// KeyLength is the length of the generated key without the separator.
	KeyLength = 40

	keyAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GatewayAPI is the subset of the API Gateway client used to register keys.
type GatewayAPI interface {
	CreateApiKey(ctx context.Context, params *apigateway.CreateApiKeyInput, optFns ...func(*apigateway.Options)) (*apigateway.CreateApiKeyOutput, error)
	CreateUsagePlanKey(ctx context.Context, params *apigateway.CreateUsagePlanKeyInput, optFns ...func(*apigateway.Options)) (*apigateway.CreateUsagePlanKeyOutput, error)
}

// KeyStore persists API key records.
type KeyStore interface {
	GetByUser(ctx context.Context, userID string) (*domain.APIKeyRecord, error)
	Create(ctx context.Context, rec domain.APIKeyRecord) error
}

// Options configures issued keys.
type Options struct {
	// UsagePlanID, when set, is the plan new keys are attached to.
	UsagePlanID    string
	ExpirationDays int
	Limits         domain.Limits
}

// KeyResponse is returned for both existing and new keys.
type KeyResponse struct {
	Message   string        `json:"message"`
	APIKey    string        `json:"api_key"`
	Limits    domain.Limits `json:"limits"`
	ExpiresAt string        `json:"expires_at,omitempty"`
	UserEmail string        `json:"user_email"`
}

// Issuer returns the caller's API key, creating one on first use.
type Issuer struct {
	gateway GatewayAPI
	keys    KeyStore
	logger  *slog.Logger
	opts    Options
	now     func() time.Time
}

// NewIssuer creates an Issuer.
func NewIssuer(gateway GatewayAPI, keys KeyStore, logger *slog.Logger, opts Options) *Issuer {
	return &Issuer{gateway: gateway, keys: keys, logger: logger, opts: opts, now: time.Now}
}

// Handle serves the key issuance endpoint. The caller is identified by the
// sub and email claims of the user pool authorizer.
func (i *Issuer) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if httpapi.IsPreflight(req) {
		return httpapi.Preflight(), nil
	}

	claims := httpapi.Claims(req)
	userID, email := claims["sub"], claims["email"]
	switch {
	case userID == "":
		return httpapi.Error(http.StatusBadRequest, "Missing user information: sub"), nil
	case email == "":
		return httpapi.Error(http.StatusBadRequest, "Missing user information: email"), nil
	}
	log := i.logger.With("user_id", userID)

	existing, err := i.keys.GetByUser(ctx, userID)
	switch {
	case err == nil:
		return httpapi.JSON(http.StatusOK, KeyResponse{
			Message:   "Existing API key found",
			APIKey:    existing.APIKey,
			Limits:    i.opts.Limits,
			ExpiresAt: existing.ExpiresAt,
			UserEmail: email,
		}), nil
	case !errors.Is(err, domain.ErrNotFound):
		log.ErrorContext(ctx, "failed to look up api key", "error", err)
		return httpapi.Error(http.StatusInternalServerError, "Error generating API key: "+err.Error()), nil
	}

	rec, err := i.issue(ctx, userID, email)
	if err != nil {
		log.ErrorContext(ctx, "failed to issue api key", "error", err)
		return httpapi.Error(http.StatusInternalServerError, "Error generating API key: "+err.Error()), nil
	}

	log.InfoContext(ctx, "api key issued", "api_key_id", rec.APIKeyID)
	return httpapi.JSON(http.StatusCreated, KeyResponse{
		Message:   "New API key generated",
		APIKey:    rec.APIKey,
		Limits:    rec.Limits,
		ExpiresAt: rec.ExpiresAt,
		UserEmail: email,
	}), nil
}

// issue generates a key, registers it with API Gateway and stores its record.
func (i *Issuer) issue(ctx context.Context, userID, email string) (*domain.APIKeyRecord, error) {
	value, err := GenerateKey(email)
	if err != nil {
		return nil, err
	}

	created, err := i.gateway.CreateApiKey(ctx, &apigateway.CreateApiKeyInput{
		Name:        aws.String("key-for-" + email),
		Description: aws.String("API key for " + email),
		Enabled:     true,
		Value:       aws.String(value),
		Tags: map[string]string{
			"user_email": email,
			"user_id":    userID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create api key: %w", err)
	}
	keyID := aws.ToString(created.Id)

	if i.opts.UsagePlanID != "" {
		_, err := i.gateway.CreateUsagePlanKey(ctx, &apigateway.CreateUsagePlanKeyInput{
			UsagePlanId: aws.String(i.opts.UsagePlanID),
			KeyId:       aws.String(keyID),
			KeyType:     aws.String("API_KEY"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to attach api key to usage plan %s: %w", i.opts.UsagePlanID, err)
		}
	}

	now := i.now().UTC()
	active := true
	rec := domain.APIKeyRecord{
		UserID:      userID,
		UserEmail:   email,
		APIKey:      value,
		APIKeyID:    keyID,
		UsagePlanID: i.opts.UsagePlanID,
		Limits:      i.opts.Limits,
		CreatedAt:   domain.FormatTimestamp(now),
		ExpiresAt:   domain.FormatTimestamp(now.AddDate(0, 0, i.opts.ExpirationDays)),
		IsActive:    &active,
	}
	if err := i.keys.Create(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GenerateKey returns <prefix>_<random>, where prefix is the lowercased local
// part of email cut to PrefixLength and prefix plus random part is KeyLength
// characters long.
func GenerateKey(email string) (string, error) {
	local, _, _ := strings.Cut(email, "@")
	prefix := strings.ToLower(local)
	if len(prefix) > PrefixLength {
		prefix = prefix[:PrefixLength]
	}

	random := make([]byte, KeyLength-len(prefix))
	limit := big.NewInt(int64(len(keyAlphabet)))
	for i := range random {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate api key: %w", err)
		}
		random[i] = keyAlphabet[n.Int64()]
	}
	return prefix + "_" + string(random), nil
}
