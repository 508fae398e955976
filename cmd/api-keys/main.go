// Package main is the api-keys Lambda function. It issues API keys to authenticated users.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/pricofy/csv-translation/internal/app"
	"github.com/pricofy/csv-translation/internal/config"
	"github.com/pricofy/csv-translation/internal/logger"
)

func main() {
	a, err := app.New(context.Background(), config.RoleAPIKeys)
	if err != nil {
		logger.NewDefault().Error("failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}

	lambda.Start(app.Handle(a.Warmer, a.Issuer().Handle))
}
