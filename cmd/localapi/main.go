// Package main serves the Lambda handlers over plain HTTP for local
// development.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/gin-gonic/gin"

	"github.com/pricofy/csv-translation/internal/app"
	"github.com/pricofy/csv-translation/internal/config"
	"github.com/pricofy/csv-translation/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, config.RoleLocal)
	if err != nil {
		logger.NewDefault().Error("failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}

	if a.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	dispatcher := a.Dispatcher()
	router := SetupRouter(Routes{
		Translate: func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
			return dispatcher.HandleRequest(ctx, req), nil
		},
		Events:  dispatcher.Handle,
		Files:   a.Files().Handle,
		Uploads: a.Uploads().Handle,
		APIKeys: a.Issuer().Handle,
	}, a.Logger)

	srv := &http.Server{
		Addr:              a.Config.Local.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		a.Logger.Info("local API listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("shutdown failed", slog.Any("error", err))
	}
}
