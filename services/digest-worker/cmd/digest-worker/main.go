package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mutter0815/DigestMailer/internal/content"
	"github.com/Mutter0815/DigestMailer/internal/mailer"
	"github.com/Mutter0815/DigestMailer/internal/userapi"
	"github.com/Mutter0815/DigestMailer/pkg/config"
	"github.com/Mutter0815/DigestMailer/pkg/logx"
	"github.com/Mutter0815/DigestMailer/pkg/rmq"
	"github.com/Mutter0815/DigestMailer/services/digest-worker/server"
	"github.com/Mutter0815/DigestMailer/services/digest-worker/worker"
)

func main() {
	config.MustLoadWorker()
	cfg := config.Worker

	logx.Init()
	defer logx.Sync()

	src, err := rmq.NewSource(cfg.RMQURL, cfg.Queue)
	if err != nil {
		log.Fatal("rmq:", err)
	}
	defer src.Close()

	mgmt := rmq.NewManagementClient(cfg.MgmtURL, cfg.RMQVHost, cfg.MgmtUser, cfg.MgmtPassword)
	contentClient := content.NewClient(cfg.ContentAPIURL)
	users := userapi.NewClient(cfg.UserAPIURL)
	dispatch := mailer.NewClient(cfg.DispatchURL, cfg.DispatchKey, cfg.TemplateName)

	w := worker.New(
		worker.Config{
			Queue:        cfg.Queue,
			BatchSize:    cfg.BatchSize,
			MaxCampaigns: cfg.MaxCampaigns,
			SiteURL:      cfg.SiteURL,
			FromEmail:    cfg.FromEmail,
			FromName:     cfg.FromName,
		},
		worker.RMQOpener{Src: src},
		mgmt,
		contentClient,
		users,
		users,
		dispatch,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewHTTPServer(cfg.AdminAddr, w)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.L().Errorw("admin_server_error", "error", err)
		}
	}()
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	logx.L().Infow("worker_started", "queue", cfg.Queue, "batch_size", cfg.BatchSize, "poll_interval", cfg.PollInterval.String())

	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logx.L().Errorw("run_error", "error", err)
		}

		select {
		case <-ctx.Done():
			logx.L().Infow("worker_stopping")
			return
		case <-ticker.C:
		}
	}
}
