// Package main is the user-uploads Lambda function. It lists the translated files of the calling user.
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
	a, err := app.New(context.Background(), config.RoleUserUploads)
	if err != nil {
		logger.NewDefault().Error("failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}

	lambda.Start(app.Handle(a.Warmer, a.Uploads().Handle))
}
