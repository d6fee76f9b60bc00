package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/sirupsen/logrus"

	"busops/internal/config"
	"busops/internal/controllers"
	"busops/internal/events"
	"busops/internal/logger"
	"busops/internal/middleware"
	"busops/internal/routes"
	"busops/internal/session"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	// Initialize structured logging to file
	logger.Setup(settings.LogFile, settings.LogLevel)

	ctx := context.Background()

	var revoker session.Revoker = session.NewMemoryRevoker()
	if settings.RedisURL != "" {
		rr, err := session.NewRedisRevoker(ctx, settings.RedisURL)
		if err != nil {
			logrus.WithError(err).Fatal("failed to connect to redis")
		}
		defer rr.Close()
		revoker = rr
	}
	middleware.Configure(settings.JWTSecret, settings.TokenTTL, revoker)

	// Connect to the database
	if err := config.InitDB(settings); err != nil {
		logrus.WithError(err).Fatal("failed to initialise database")
	}
	defer config.CloseDB()
	middleware.SetPrincipalLookup(controllers.LookupPrincipal)

	publishers := events.Fanout{controllers.Hub()}
	if brokers := settings.Brokers(); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(brokers, settings.KafkaTopic)
		defer kp.Close()
		publishers = append(publishers, kp)
		logrus.WithField("topic", settings.KafkaTopic).Info("publishing review events to kafka")
	}
	controllers.SetPublisher(publishers)
	controllers.SetSocketOrigins(settings.AllowedOrigins())
	defer controllers.Hub().Close()

	if settings.GinMode != "" {
		gin.SetMode(settings.GinMode)
	}
	r := gin.New()

	if settings.NewRelicLicense != "" {
		app, err := newrelic.NewApplication(
			newrelic.ConfigAppName(settings.NewRelicAppName),
			newrelic.ConfigLicense(settings.NewRelicLicense),
			newrelic.ConfigDistributedTracerEnabled(true),
		)
		if err != nil {
			logrus.WithError(err).Warn("failed to initialise New Relic")
		} else {
			r.Use(nrgin.Middleware(app))
			defer app.Shutdown(5 * time.Second)
		}
	}

	r.Use(
		middleware.RequestID(),
		logger.RequestLogger(),
		gin.Recovery(),
		middleware.CORS(settings.AllowedOrigins()),
	)
	routes.SetupRouter(r)

	srv := &http.Server{
		Addr:              settings.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("addr", settings.AppAddr).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server shutdown failed")
	}
}
