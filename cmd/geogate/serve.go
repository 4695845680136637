package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"geogate/internal/config"
	"geogate/internal/handler"
	"geogate/internal/policy"
	"geogate/internal/repository"
	"geogate/internal/service"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the access decision HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	flags := cmd.Flags()
	flags.String("port", "", "listen address, e.g. :8080")
	flags.String("proxy-header", "", "header carrying the client address, e.g. X-Forwarded-For")
	flags.StringSlice("trusted-proxies", nil, "proxy addresses or CIDR ranges allowed to set the proxy header")

	_ = viper.BindPFlag("SERVER_PORT", flags.Lookup("port"))
	_ = viper.BindPFlag("PROXY_HEADER", flags.Lookup("proxy-header"))
	_ = viper.BindPFlag("TRUSTED_PROXIES", flags.Lookup("trusted-proxies"))
	return cmd
}

func serve() error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting up server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	fetcher := service.NewDatabaseFetcher(logger)
	sources := []service.DatabaseSource{
		{Name: "geo", URL: cfg.GeoDBURL, Path: cfg.GeoDBPath},
		{Name: "asn", URL: cfg.ASNDBURL, Path: cfg.ASNDBPath},
	}
	if err := fetcher.EnsureDatabases(ctx, sources); err != nil {
		return fmt.Errorf("downloading databases: %w", err)
	}

	geoRepo, asnRepo, err := openDatabases(cfg, logger)
	if err != nil {
		return err
	}
	defer geoRepo.Close()
	sources[0].Reloader = geoRepo
	if asnRepo != nil {
		defer asnRepo.Close()
		sources[1].Reloader = asnRepo
	} else {
		sources = sources[:1]
	}
	fetcher.Start(ctx, sources, cfg.DBRefreshInterval)

	var cache service.Cache
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opt)
		defer redisClient.Close()

		redisRepo := repository.NewRedisRepository(redisClient, cfg.CacheTTL, logger)
		if err := redisRepo.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable, lookups will not be cached", zap.Error(err))
		} else {
			cache = redisRepo
		}
	}

	ips, countries := cfg.AllowedIPs, cfg.AllowedCountries
	var audit service.AuditLog
	if cfg.PostgresURL != "" {
		postgresRepo, closeDB, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeDB()

		storedIPs, storedCountries, err := postgresRepo.LoadAllowLists(ctx)
		if err != nil {
			return err
		}
		ips = append(ips, storedIPs...)
		countries = append(countries, storedCountries...)

		if cfg.AuditEnabled {
			audit = postgresRepo
		}
	}

	p := policy.New(ips, countries)
	logger.Info("Loaded access policy",
		zap.Strings("allowed_countries", p.AllowedCountries()),
		zap.Int("allowed_ips", len(p.AllowedIPs())),
		zap.Bool("asn_lookup", asnRepo != nil))

	accessService := service.NewAccessService(geoRepo, asnLookup(asnRepo), cache, audit, p, logger)

	app := handler.NewApp(cfg.ProxyHeader, cfg.TrustedProxies, logger)
	handler.NewHandler(accessService, logger).RegisterRoutes(app)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- app.Listen(cfg.ServerPort)
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("listening on %s: %w", cfg.ServerPort, err)
	case <-ctx.Done():
	}

	logger.Info("Stopping server", zap.Duration("timeout", shutdownTimeout))
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("stopping server: %w", err)
	}
	return nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.PostgresRepository, func(), error) {
	db, err := sqlx.Connect("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	repo := repository.NewPostgresRepository(db, logger)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, func() { db.Close() }, nil
}
