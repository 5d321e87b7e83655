package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/veillabs/veilbook/params"
	"github.com/veillabs/veilbook/pkg/api"
	"github.com/veillabs/veilbook/pkg/book"
	"github.com/veillabs/veilbook/pkg/confidential"
	"github.com/veillabs/veilbook/pkg/storage"
	"github.com/veillabs/veilbook/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// ---- Confidential value service ----
	// Missing key material is not fatal: the book starts in plaintext mode
	// and keys can be generated through /generate-keys.
	svc, err := confidential.NewECIESService(cfg.Keys.Dir)
	if err != nil {
		sugar.Fatalw("confidential_service_init_failed", "err", err)
	}
	if !svc.Ready() {
		sugar.Warnw("key_material_missing",
			"keys_dir", cfg.Keys.Dir,
			"hint", "POST /generate-keys or run cmd/keygen")
	}

	// ---- Fill journal (optional) ----
	var journal *storage.FillJournal
	if cfg.FillJournal != "" {
		journal, err = storage.OpenFillJournal(cfg.FillJournal)
		if err != nil {
			sugar.Fatalw("fill_journal_open_failed", "path", cfg.FillJournal, "err", err)
		}
		defer journal.Close()
		sugar.Infow("fill_journal_open", "path", cfg.FillJournal)
	}

	// ---- Matching engine ----
	var srv *api.Server
	b := book.New(svc,
		book.WithLogger(sugar),
		book.WithFillHook(func(f book.Fill) {
			if journal != nil {
				if err := journal.Append(f); err != nil {
					sugar.Warnw("fill_journal_append_failed", "err", err)
				}
			}
			if srv != nil {
				srv.BroadcastFill(f)
			}
		}))

	if cfg.Book.ConfidentialDefault && svc.Ready() {
		if err := b.SetConfidential(true); err != nil {
			sugar.Fatalw("confidential_mode_failed", "err", err)
		}
		sugar.Info("confidential mode enabled")
	} else {
		sugar.Info("plaintext mode (no key material or disabled by config)")
	}

	// ---- API server ----
	srv = api.NewServer(b, svc, journal, sugar)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(cfg.Server.ListenAddr, cfg.Server.AllowedOrigins); err != nil {
			sugar.Fatalw("api_server_failed", "err", err)
		}
	}()

	sugar.Infow("node_started",
		"addr", cfg.Server.ListenAddr,
		"confidential", b.Confidential(),
		"keys_ready", svc.Ready())

	<-ctx.Done()
	sugar.Info("shutting down")
}
