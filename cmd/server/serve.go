package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/iliyamo/table-reservation/internal/availability"
	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/cache"
	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/database"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/logger"
	"github.com/iliyamo/table-reservation/internal/lookup"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/publisher"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/router"
)

func newServeCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log := newLogger(cfg.LogLevel)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			db, err := database.Open(dbOptions(cfg))
			if err != nil {
				return fmt.Errorf("db open: %w", err)
			}
			defer db.Close()

			if migrateUp {
				applied, err := database.Migrate(ctx, db)
				if err != nil {
					return err
				}
				log.Info("migrations applied", "files", applied)
			}

			var rdb *redis.Client
			if cfg.Cache.Backend == config.CacheBackendRedis || cfg.RateLimit.Enabled {
				rdb = config.NewRedisClient(cfg.Redis)
				if rdb == nil {
					log.Warn("redis unreachable; availability cache and rate limiting disabled", "addr", cfg.Redis.Addr)
				} else {
					defer rdb.Close()
				}
			}

			pub, err := publisher.New(publisher.Config{
				Broker:      cfg.Events.Broker,
				RabbitMQURL: cfg.Events.RabbitMQURL,
				Brokers:     cfg.Events.KafkaBrokers,
				Topic:       cfg.Events.KafkaTopic,
			}, log.With("component", "publisher"))
			if err != nil {
				return err
			}
			defer pub.Close()

			catalogRepo := repository.NewCatalogRepo(db, cfg.DBQueryTimeout)
			reservationRepo := repository.NewReservationRepo(db, cfg.DBQueryTimeout)
			catalog := lookup.NewCatalog(
				lookup.NewOracle(cacheStore(cfg.Cache, rdb, log), cfg.Cache.NegativeTTL, log.Logger),
				catalogRepo,
				namespaces(cfg.Cache),
			)
			svc := booking.NewService(booking.Deps{
				Catalog:   catalog,
				Conflicts: availability.NewDetector(reservationRepo),
				Capacity:  availability.NewCapacity(catalogRepo),
				Store:     reservationRepo,
				Publisher: pub,
				Rules: booking.Rules{
					MaxPartySize: cfg.Booking.MaxPartySize,
					MaxDaysAhead: cfg.Booking.MaxDaysAhead,
				},
				Log: log.With("component", "booking"),
			})

			e := echo.New()
			e.HideBanner = true
			e.Use(echomw.Recover())
			e.Use(echomw.RequestID())

			router.RegisterRoutes(e, handler.Ready(db))
			router.RegisterReservations(e, handler.NewReservationHandler(svc), cfg.JWTSecret,
				middleware.NewTokenBucket(cfg.RateLimit, rdb, log.With("component", "ratelimit")))
			router.RegisterAdmin(e, handler.NewCatalogHandler(catalog), cfg.JWTSecret)

			return serve(ctx, e, ":"+cfg.Port, cfg.Env, log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", false, "run database migrations on startup")
	return cmd
}

func serve(ctx context.Context, e *echo.Echo, addr, env string, log *logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", addr, "env", env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("shutting down")
	return e.Shutdown(shutdownCtx)
}

func dbOptions(cfg config.Config) database.Options {
	return database.Options{User: cfg.DBUser, Pass: cfg.DBPass, Host: cfg.DBHost, Port: cfg.DBPort, Name: cfg.DBName}
}

// cacheStore picks the availability cache.  Redis falls back to an
// uncached store when the client could not connect.
func cacheStore(cfg config.CacheConfig, rdb *redis.Client, log *logger.Logger) cache.Store {
	switch cfg.Backend {
	case config.CacheBackendMemory:
		return cache.NewMemory()
	case config.CacheBackendNone:
		return cache.Noop{}
	default:
		return cache.NewRedisStore(rdb, cfg.OpTimeout, log.With("component", "cache").Logger)
	}
}

func namespaces(cfg config.CacheConfig) lookup.Namespaces {
	return lookup.Namespaces{
		Venue:    lookup.Namespace{Name: lookup.VenueNamespace, TTL: cfg.VenueTTL},
		Resource: lookup.Namespace{Name: lookup.ResourceNamespace, TTL: cfg.ResourceTTL},
		Slot:     lookup.Namespace{Name: lookup.SlotNamespace, TTL: cfg.SlotTTL},
	}
}
