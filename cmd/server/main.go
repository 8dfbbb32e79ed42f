// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"loan-portal/internal/common/auth"
	"loan-portal/internal/common/config"
	"loan-portal/internal/common/crm"
	"loan-portal/internal/common/database"
	"loan-portal/internal/common/logger"
	"loan-portal/internal/common/observability"
	"loan-portal/internal/draft"
	"loan-portal/internal/loan/process"
	"loan-portal/internal/loan/repository"
	"loan-portal/internal/loan/status"
	"loan-portal/internal/notify"
	"loan-portal/internal/search"
	"loan-portal/internal/server"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting loan portal server...")

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rd *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rd, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rd.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rd.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch (optional) ---
	var indexer *search.Indexer
	if cfg.Database.Elasticsearch.Enabled {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Downstream collaborators ---
	var crmSyncer *crm.Syncer
	if cfg.Integrations.CRM.Enabled {
		crmClient := crm.NewClient(
			cfg.Integrations.CRM.OAuthToken,
			cfg.Integrations.CRM.LeadSource,
		)
		crmSyncer = crm.NewSyncer(crmClient)
	}

	var notifier *notify.Notifier
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		notifier, err = notify.New(ctx, cfg.Notifications.AWS.Region, notify.Options{
			EmailEnabled: cfg.Notifications.Email.Enabled,
			FromEmail:    cfg.Notifications.Email.FromEmail,
			OpsEmail:     cfg.Notifications.Email.OpsEmail,
			SMSEnabled:   cfg.Notifications.SMS.Enabled,
			OpsPhone:     cfg.Notifications.SMS.OpsPhone,
		}, log)
		if err != nil {
			zapLog.Fatal("notifier init failed", zap.Error(err))
		}
	}

	// --- Core wiring ---
	repo := repository.New(pg.GetDB(), log)

	// The interface-typed nils matter: a typed nil wrapped in a non-nil
	// interface would defeat the processor's nil checks.
	var crmDep process.CRMSyncer
	var statusCRMDep status.CRMSyncer
	if crmSyncer != nil {
		crmDep = crmSyncer
		statusCRMDep = crmSyncer
	}
	var notifierDep process.Notifier
	if notifier != nil {
		notifierDep = notifier
	}
	var indexerDep process.Indexer
	var statusIndexerDep status.Indexer
	if indexer != nil {
		indexerDep = indexer
		statusIndexerDep = indexer
	}

	processor := process.New(repo, crmDep, notifierDep, indexerDep, log)
	statusHandler := status.NewHandler(repo, statusIndexerDep, statusCRMDep, log)

	resolver := auth.NewKeycloakClient(
		cfg.Auth.URL,
		cfg.Auth.Realm,
		cfg.Auth.ClientID,
		cfg.Auth.ClientSecret,
	)

	// Draft snapshots live in redis with a TTL; the gateway keeps one engine
	// per active form session on top of the shared store.
	draftStore := draft.NewRedisStore(
		rd.GetClient(),
		time.Duration(cfg.AutoSave.SnapshotTTL)*time.Hour,
		log,
	)
	drafts := server.NewDraftGateway(draftStore, draft.Options{
		Debounce:      time.Duration(cfg.AutoSave.DebounceMS) * time.Millisecond,
		MaxAge:        time.Duration(cfg.AutoSave.MaxAgeHours) * time.Hour,
		ExcludeFields: cfg.AutoSave.ExcludeFields,
	}, log)

	handler := server.NewHandler(processor, statusHandler, repo, resolver, log)
	handler.SetObservability(obs)
	srv := server.New(cfg.Server, handler, drafts)

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("graceful shutdown failed", zap.Error(err))
	}
	drafts.Close()

	zapLog.Info("Server stopped")
}
