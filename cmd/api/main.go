package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/harlequingg/nearhelp/internal/auth"
	"github.com/harlequingg/nearhelp/internal/comments"
	"github.com/harlequingg/nearhelp/internal/config"
	"github.com/harlequingg/nearhelp/internal/helpers"
	"github.com/harlequingg/nearhelp/internal/mailer"
	"github.com/harlequingg/nearhelp/internal/notifications"
	"github.com/harlequingg/nearhelp/internal/storage"
	"github.com/harlequingg/nearhelp/internal/tasks"
	"github.com/harlequingg/nearhelp/internal/users"
)

const version = "1.0.0"

type application struct {
	config config.Config
	log    *logrus.Logger
	store  *storage.Store
	tokens *auth.Tokens

	users         *users.Service
	tasks         *tasks.Service
	helpers       *helpers.Service
	comments      *comments.Service
	notifications *notifications.Service
}

func main() {
	log := logrus.New()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("could not read .env")
	}

	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	configureLogger(log, cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, storage.Config{
		DSN:          cfg.DB.DSN,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxIdleTime:  cfg.DB.MaxIdleTime,
	})
	if err != nil {
		log.WithError(err).Fatal("could not open database")
	}
	defer store.Close()
	log.Info("established a connection with database")

	if cfg.JWT.Secret == "" {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			log.WithError(err).Fatal("could not generate jwt secret")
		}
		cfg.JWT.Secret = hex.EncodeToString(secret)
		log.Warn("no jwt secret configured, tokens will not survive a restart")
	}

	var m notifications.Mailer
	if cfg.SMTP.Enabled() {
		m = mailer.New(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.Sender)
	}

	app := newApplication(cfg, log, store, m)
	if err := app.serve(ctx); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func configureLogger(log *logrus.Logger, env string) {
	if env == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
		return
	}
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetLevel(logrus.DebugLevel)
}

// newApplication wires the services. m may be nil, then notifications are
// recorded but not emailed.
func newApplication(cfg config.Config, log *logrus.Logger, store *storage.Store, m notifications.Mailer) *application {
	tokens := auth.NewTokens(cfg.JWT.Secret, cfg.JWT.TTL)
	feed := notifications.New(store.Notifications, store.Users, m, log)
	return &application{
		config:        cfg,
		log:           log,
		store:         store,
		tokens:        tokens,
		users:         users.New(store.Users, tokens, feed, log),
		tasks:         tasks.New(store.Tasks, store.Comments, store.Users, log),
		helpers:       helpers.New(store.Helpers, store.Tasks, feed, log),
		comments:      comments.New(store.Comments, store.Tasks, feed, log),
		notifications: feed,
	}
}

// serve runs the HTTP server until ctx is cancelled, then drains in-flight
// requests and pending notification emails.
func (app *application) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", app.config.Port),
		Handler:      app.routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.log.WithFields(logrus.Fields{"env": app.config.Env, "addr": srv.Addr}).Info("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	app.notifications.Wait()
	app.log.Info("stopped server")
	return nil
}
