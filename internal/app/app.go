// Package app wires configuration, logging and AWS clients into the
// handlers run by each function. All configuration problems surface from New.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/apigateway"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/translate"

	"github.com/pricofy/csv-translation/internal/apikeys"
	"github.com/pricofy/csv-translation/internal/auth"
	"github.com/pricofy/csv-translation/internal/config"
	"github.com/pricofy/csv-translation/internal/dispatch"
	"github.com/pricofy/csv-translation/internal/domain"
	"github.com/pricofy/csv-translation/internal/listing"
	"github.com/pricofy/csv-translation/internal/logger"
	"github.com/pricofy/csv-translation/internal/metadata"
	"github.com/pricofy/csv-translation/internal/objectstore"
	"github.com/pricofy/csv-translation/internal/pipeline"
	"github.com/pricofy/csv-translation/internal/queue"
	"github.com/pricofy/csv-translation/internal/translator"
	"github.com/pricofy/csv-translation/internal/warmup"
)

// App holds the clients shared by the handlers of one process.
type App struct {
	Config *config.Config
	Logger *slog.Logger
	Warmer *warmup.Warmer

	aws aws.Config
}

// New loads configuration for role, validates it and prepares the AWS
// configuration.
func New(ctx context.Context, role config.Role) (*App, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(role); err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", role, err)
	}

	log := logger.New(logger.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableSource: cfg.Logging.EnableSource,
	}).With("function", string(role), "environment", cfg.App.Environment)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	a := &App{Config: cfg, Logger: log, aws: awsCfg}
	a.Warmer = warmup.New(lambda.NewFromConfig(awsCfg), cfg.App.FunctionName, log)
	return a, nil
}

func (a *App) dynamo() *dynamodb.Client {
	return dynamodb.NewFromConfig(a.aws)
}

// Jobs returns the Job Record store.
func (a *App) Jobs() *metadata.Jobs {
	return metadata.NewJobs(a.dynamo(), a.Config.Metadata.JobTable, a.Config.Metadata.EmailIndex)
}

// APIKeys returns the API key record store.
func (a *App) APIKeys() *metadata.APIKeys {
	return metadata.NewAPIKeys(a.dynamo(), a.Config.Metadata.APIKeyTable, a.Config.Metadata.APIKeyIndex)
}

// Objects returns the S3 object store.
func (a *App) Objects() *objectstore.Store {
	return objectstore.New(s3.NewFromConfig(a.aws))
}

// Translator returns the configured translation backend.
func (a *App) Translator() translator.Translator {
	if a.Config.Translation.Backend == config.BackendFunction {
		return translator.NewFunction(lambda.NewFromConfig(a.aws), a.Config.Translation.FunctionName)
	}
	return translator.NewAWS(translate.NewFromConfig(a.aws))
}

// Pipeline returns a translation pipeline over jobs and objects.
func (a *App) Pipeline(jobs pipeline.JobStore, objects pipeline.ObjectStore) *pipeline.Pipeline {
	return pipeline.New(jobs, objects, a.Translator(), a.Logger, pipeline.Options{
		OutputBucket: a.Config.Storage.OutputBucket,
		Concurrency:  a.Config.Translation.Concurrency,
		CellTimeout:  a.Config.Translation.Timeout,
	})
}

// Dispatcher returns the upload dispatcher. Without a queue URL storage
// events cannot be queued and are reported as failed records.
func (a *App) Dispatcher() *dispatch.Dispatcher {
	jobs := a.Jobs()
	objects := a.Objects()

	var q dispatch.Queue
	if a.Config.Queue.URL != "" {
		q = queue.New(sqs.NewFromConfig(a.aws), a.Config.Queue.URL)
	}

	return dispatch.New(
		auth.NewResolver(a.APIKeys(), a.Logger),
		jobs,
		objects,
		q,
		a.Pipeline(jobs, objects),
		a.Logger,
		dispatch.Options{
			InputBucket:  a.Config.Storage.InputBucket,
			OutputBucket: a.Config.Storage.OutputBucket,
			Languages:    a.Config.Languages(),
		},
	)
}

// Files returns the bucket listing handler.
func (a *App) Files() *listing.Files {
	return listing.NewFiles(a.Objects(), a.Config.Storage.ListBucket, a.Config.Storage.ListMaxKeys, a.Logger)
}

// Uploads returns the per-user uploads handler.
func (a *App) Uploads() *listing.Uploads {
	return listing.NewUploads(a.Jobs(), a.Objects(), a.Config.Storage.OutputBucket, a.Logger)
}

// Issuer returns the API key issuance handler.
func (a *App) Issuer() *apikeys.Issuer {
	c := a.Config.APIKeys
	return apikeys.NewIssuer(apigateway.NewFromConfig(a.aws), a.APIKeys(), a.Logger, apikeys.Options{
		UsagePlanID:    c.UsagePlanID,
		ExpirationDays: c.ExpirationDays,
		Limits: domain.Limits{
			RateLimit:  c.RateLimit,
			BurstLimit: c.BurstLimit,
			DailyQuota: c.DailyQuota,
		},
	})
}
