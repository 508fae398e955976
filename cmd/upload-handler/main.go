// Package main is the upload handler Lambda function. It receives CSV uploads over HTTP and S3 events and queues or runs translations.
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
	a, err := app.New(context.Background(), config.RoleUploadHandler)
	if err != nil {
		logger.NewDefault().Error("failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}

	lambda.Start(app.Handle(a.Warmer, a.Dispatcher().Handle))
}
