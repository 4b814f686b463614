// deploy-agent Lambda関数のスタブ。ENV=LOCALの場合はLambda Invoke APIを模したWebサーバーとして起動する

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/buildconfig"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/config"
	"github.com/k-kazuya0926/deploy-agent-invoker/internal/stub"
	"go.uber.org/zap"
)

func serveLocal(handler *stub.Handler, logger *zap.Logger) {
	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           stub.NewRouter(config.FunctionName(), handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("stub server starting",
			zap.String("addr", addr),
			zap.String("function", config.FunctionName()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down stub server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("deploy-agent stub",
		zap.String("version", buildconfig.Version()),
		zap.String("commit", buildconfig.Commit()),
	)

	handler := stub.NewHandler(config.ALBBaseURL(), config.Region(), logger)

	// 環境変数ENVをチェック
	if config.IsLocal() {
		serveLocal(handler, logger)
		return
	}
	lambda.Start(handler.Handle)
}
