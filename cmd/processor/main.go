// Package main is the processor Lambda function. It consumes queued translation jobs.
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
	a, err := app.New(context.Background(), config.RoleProcessor)
	if err != nil {
		logger.NewDefault().Error("failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}

	lambda.Start(app.Handle(a.Warmer, a.Dispatcher().Handle))
}
