package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"geogate/internal/config"
	"geogate/internal/logger"
	"geogate/internal/repository"
	"geogate/internal/service"
)

var rootCmd = &cobra.Command{
	Use:          "geogate",
	Short:        "Geographic and VPN-aware access decisions for client addresses",
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("geo-db", "", "path to the GeoLite2/GeoIP2 City database")
	flags.String("asn-db", "", "path to the GeoLite2 ASN database")
	flags.StringSlice("allowed-countries", nil, "allow-listed ISO country codes")
	flags.StringSlice("allowed-ips", nil, "allow-listed IP addresses")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("GEO_DB_PATH", flags.Lookup("geo-db"))
	_ = viper.BindPFlag("ASN_DB_PATH", flags.Lookup("asn-db"))
	_ = viper.BindPFlag("ALLOWED_COUNTRIES", flags.Lookup("allowed-countries"))
	_ = viper.BindPFlag("ALLOWED_IPS", flags.Lookup("allowed-ips"))
	_ = viper.BindPFlag("LOG_LEVEL", flags.Lookup("log-level"))

	rootCmd.AddCommand(serveCommand(), checkCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.LogFile), nil
}

// openDatabases loads the geo database, which is required, and the ASN
// database, which is optional. A nil ASN repository means ASN lookups are
// unavailable for the lifetime of the process.
func openDatabases(cfg *config.Config, log *zap.Logger) (*repository.GeoRepository, *repository.ASNRepository, error) {
	geoRepo := repository.NewGeoRepository(cfg.GeoDBPath, log)
	if err := geoRepo.Reload(); err != nil {
		return nil, nil, err
	}

	if cfg.ASNDBPath == "" {
		log.Warn("ASN database not configured, VPN detection disabled")
		return geoRepo, nil, nil
	}
	asnRepo := repository.NewASNRepository(cfg.ASNDBPath, log)
	if err := asnRepo.Reload(); err != nil {
		log.Warn("ASN database unavailable, VPN detection disabled", zap.Error(err))
		return geoRepo, nil, nil
	}
	return geoRepo, asnRepo, nil
}

// asnLookup keeps a missing repository a nil interface.
func asnLookup(repo *repository.ASNRepository) service.ASNLookup {
	if repo == nil {
		return nil
	}
	return repo
}
