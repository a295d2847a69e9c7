package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"quick-notes/config"
	"quick-notes/db"
	"quick-notes/handlers"
	"quick-notes/session"
	"quick-notes/store"
	"quick-notes/web"
)

const sessionSweepInterval = 10 * time.Minute

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoDotEnv) {
		logger.Debug("no .env file, using environment only")
	} else if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		stop()
		logger.Fatal(err)
	}
}

// run serves until ctx is cancelled or the listener fails, then shuts the
// server down and flushes both stores before releasing storage.
func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	notesDoc, usersDoc, closeDocs, err := openDocuments(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeDocs()

	notes := store.NewNoteStore(notesDoc, cfg.Storage.FlushDelay, logger)
	notes.Load(ctx)
	users := store.NewUserStore(usersDoc, cfg.Storage.FlushDelay, cfg.Auth.BcryptCost, logger)
	users.Load(ctx)

	if cfg.Session.Secret == "" {
		logger.Warn("session.secret not set, using a random key; sessions end on restart anyway")
	}
	sessions, err := session.NewManager(session.Options{
		Secret:     []byte(cfg.Session.Secret),
		TTL:        cfg.Session.TTL,
		CookieName: cfg.Session.CookieName,
		Secure:     cfg.Session.Secure,
	})
	if err != nil {
		return fmt.Errorf("session manager: %w", err)
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sweepSessions(sweepCtx, sessions, logger)

	h := handlers.New(notes, users, sessions, logger)
	srv := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: newRouter(h, sessions, routerOptions{
			Origins: cfg.CORS.Origins,
			Assets:  web.Assets,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Quick Notes listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down...")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server: %w", err)
		logger.WithError(err).Error("http server stopped, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if err := notes.Close(shutdownCtx); err != nil {
		logger.Errorf("final notes flush: %v", err)
	}
	if err := users.Close(shutdownCtx); err != nil {
		logger.Errorf("final users flush: %v", err)
	}
	logger.Info("saved data before exit")
	return runErr
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	if strings.EqualFold(cfg.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

// openDocuments returns the users and notes documents for the configured
// backend along with a function that releases it.
func openDocuments(ctx context.Context, cfg config.Config) (db.Document, db.Document, func(), error) {
	if cfg.Storage.Driver == "file" {
		return db.NewFileDocument(cfg.Storage.NotesFile), db.NewFileDocument(cfg.Storage.UsersFile), func() {}, nil
	}

	sqlStore, err := db.OpenSQL(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return nil, nil, nil, err
	}
	return sqlStore.Document("notes"), sqlStore.Document("users"), func() { sqlStore.Close() }, nil
}

func sweepSessions(ctx context.Context, sessions *session.Manager, logger *logrus.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				logger.WithField("removed", n).Debug("expired sessions swept")
			}
		}
	}
}
