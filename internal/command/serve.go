package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/movie-library-api/internal/config"
	"github.com/iliyamo/movie-library-api/internal/database"
	"github.com/iliyamo/movie-library-api/internal/handler"
	"github.com/iliyamo/movie-library-api/internal/logging"
	"github.com/iliyamo/movie-library-api/internal/middleware"
	"github.com/iliyamo/movie-library-api/internal/queue"
	"github.com/iliyamo/movie-library-api/internal/router"
	"github.com/iliyamo/movie-library-api/internal/service"
	"github.com/iliyamo/movie-library-api/internal/utils"
)

// Server timeouts.
const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

func serveCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the movie library HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (runErr error) {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger := logging.New(cfg.LogLevel, cfg.LogFormat)
			slog.SetDefault(logger)

			session := cfg.Session()
			loc, err := session.Location()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName, database.PoolConfig{
				MaxOpenConns:    cfg.DBMaxOpenConns,
				MaxIdleConns:    cfg.DBMaxIdleConns,
				ConnMaxLifetime: cfg.DBConnMaxLifetime,
				Loc:             loc,
			})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					runErr = errors.Join(runErr, err)
				}
			}()
			if migrate {
				if err := database.Migrate(cmd.Context(), logger, db, "up"); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
			}

			rdb := config.NewRedisClient(cmd.Context())
			if rdb == nil {
				logger.Info("redis not configured or unreachable; using in-process rate limiting and no response cache")
			} else {
				defer func() { _ = rdb.Close() }()
			}

			grp, ctx := errgroup.WithContext(cmd.Context())

			publisher := service.NewPublisher(cfg.AMQPURL, logger)
			cache := middleware.NewUserCache(config.LoadCacheConfig(), rdb)
			tokens := utils.NewTokenCodec(cfg.JWTSecret, cfg.AccessTTL())

			e := router.New(router.Deps{
				Logger: logger,
				Pool:   db,
				Lease: middleware.LeaseOptions{
					Session:        session,
					AcquireTimeout: cfg.DBAcquireTimeout,
				},
				Verifier:    tokens,
				RateLimit:   middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
				Cache:       cache,
				CORSOrigins: cfg.CORSOrigins,
				Auth:        handler.NewAuthHandler(utils.NewHasher(cfg.BcryptCost), tokens, publisher),
				Library:     handler.NewLibraryHandler(publisher, cache),
			})

			if publisher.Enabled() {
				grp.Go(func() error { return publisher.Run(ctx) })
				consumer := &queue.Consumer{URL: cfg.AMQPURL, Logger: logger}
				grp.Go(func() error { return consumer.Run(ctx) })
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           e,
				ReadHeaderTimeout: readHeaderTimeout,
			}
			grp.Go(func() error {
				logger.Info(fmt.Sprintf("movie-db-api listening at http://localhost:%s", cfg.Port), "env", cfg.Env)
				if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			grp.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})
			return grp.Wait()
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending schema migrations before serving")
	return cmd
}
