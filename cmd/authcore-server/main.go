// Command authcore-server exposes the authcore engine over HTTP. It wires
// Redis for challenge state, PostgreSQL for accounts, and NSQ for OTP
// delivery; without an NSQ address it falls back to logging codes, which is
// for local development only.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/propspace/authcore"
	"github.com/propspace/authcore/accountstore"
	"github.com/propspace/authcore/metrics/export/prometheus"
	"github.com/propspace/authcore/notify"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	db, err := sqlx.Connect("postgres", cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	accounts := accountstore.NewPostgresProvider(db)
	if err := accounts.Migrate(context.Background()); err != nil {
		log.Fatal("postgres migrate", zap.Error(err))
	}

	var sender authcore.OTPSender
	if cfg.DevSender {
		log.Warn("no NSQ address configured, OTP codes will be logged")
		sender = notify.NewDevSender(log)
	} else {
		nsqSender, err := notify.NewNSQSender(cfg.NSQAddr, cfg.NSQTopic)
		if err != nil {
			log.Fatal("nsq sender", zap.Error(err))
		}
		defer nsqSender.Stop()
		sender = nsqSender
	}

	engine, err := authcore.New().
		WithJWTKeys(cfg.JWTPrivateKey, cfg.JWTPublicKey).
		WithJWTIssuer(cfg.JWTIssuer).
		WithRedis(redisClient).
		WithAccountProvider(accounts).
		WithSender(sender).
		WithAuditSink(authcore.NewJSONWriterSink(os.Stdout)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		log.Fatal("engine build", zap.Error(err))
	}
	defer engine.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	newAPIHandler(engine, log).registerRoutes(e)
	e.GET("/metrics", echo.WrapHandler(prometheus.NewPrometheusExporter(engine).Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(200)
	})

	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := e.Start(cfg.HTTPAddr); err != nil {
			log.Info("server stopped", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
