package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"flashvote/clock"
	"flashvote/config"
	"flashvote/db"
	"flashvote/logging"
	"flashvote/metrics"
	"flashvote/middlewares"
	"flashvote/models"
	"flashvote/routes"
	"flashvote/utils"
	"flashvote/votes"
)

func main() {
	confPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to the YAML config file")
	flag.Parse()

	conf, err := config.Load(*confPath)
	if err != nil {
		logrus.WithError(err).Fatal("Could not load configuration")
	}
	logging.Setup(conf.Log.Level, conf.Log.Format)
	utils.ConfigureTokens(conf.Auth.JWTSecret, conf.Auth.TokenTTL)
	logger := logging.Component("main")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Postgres
	sqldb, err := db.Open(ctx, conf.Storage.PostgresDSN)
	if err != nil {
		logger.WithError(err).Fatal("Postgres unavailable")
	}
	defer sqldb.Close()
	if err := db.CreateSchema(ctx, sqldb); err != nil {
		logger.WithError(err).Fatal("Could not create schema")
	}

	// Mongo
	mg, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Storage.MongoURI))
	if err != nil {
		logger.WithError(err).Fatal("mongo.Connect error")
	}
	if err := mg.Ping(ctx, nil); err != nil {
		logger.WithError(err).Fatal("Mongo ping error")
	}
	defer func() { _ = mg.Disconnect(context.Background()) }()

	eventsCol := mg.Database(conf.Storage.MongoDatabase).Collection("events")
	if err := models.EnsureEventIndexes(ctx, eventsCol); err != nil {
		logger.WithError(err).Fatal("Could not create event indexes")
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{Addr: conf.Storage.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("Redis ping error")
	}

	clk := clock.NewSystem()
	var store votes.WindowStore = votes.NewMemoryStore()
	if conf.Votes.WindowStore == config.WindowStoreRedis {
		store = votes.NewRedisStore(rdb)
	}
	m := metrics.New()

	// Gin + middlewares
	gin.SetMode(gin.ReleaseMode)
	server := gin.New()
	server.Use(gin.Recovery(), middlewares.RequestLogger(), middlewares.Metrics(m))
	server.Use(middlewares.ResponseCache(rdb, conf.CacheTTL))

	stop := routes.RegisterRoutes(server, routes.Deps{
		Users:       models.NewSQLUserRepository(sqldb),
		Admins:      models.NewSQLAdminRepository(sqldb),
		Events:      models.NewMongoEventRepository(eventsCol),
		Items:       models.NewSQLItemRepository(sqldb),
		Subjects:    models.NewSQLSubjectRepository(sqldb),
		Locations:   models.NewSQLLocationRepository(sqldb),
		Votes:       models.NewSQLVoteRepository(sqldb),
		Window:      votes.NewWindow(store, conf.Votes.Window, clk),
		Feed:        votes.NewFeed(rdb),
		Redis:       rdb,
		Invalidator: utils.NewCacheInvalidator(rdb),
		Metrics:     m,
		Clock:       clk,
		Limits:      conf.Limits,
		DefaultDays: conf.Votes.DefaultDays,
	})
	defer stop()

	srv := &http.Server{
		Addr:         conf.Server.ListenAddress,
		Handler:      server,
		ReadTimeout:  conf.Server.ReadTimeout,
		WriteTimeout: conf.Server.WriteTimeout,
		IdleTimeout:  conf.Server.IdleTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		logger.WithField("addr", conf.Server.ListenAddress).Info("Starting listening port")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	// Watchdog for systemd
	go func() {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return
		}
		logger.Info("Activating systemd watchdog goroutine")
		url := "http://127.0.0.1" + conf.Server.ListenAddress[strings.LastIndex(conf.Server.ListenAddress, ":"):] + "/health"
		for {
			if resp, err := http.Get(url); err == nil {
				resp.Body.Close()
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			time.Sleep(interval / 3)
		}
	}()

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		logger.WithField("signal", s.String()).Info("Caught signal to stop. Shutting down.")
	case err := <-errs:
		logger.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 15*time.Second)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Forced shutdown")
	}
	logger.Info("Shutdown complete")
}
