package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"geogate/internal/policy"
	"geogate/internal/service"
)

func checkCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <ip>...",
		Short: "Print access decisions for addresses using the local databases",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()

			geoRepo, asnRepo, err := openDatabases(cfg, logger)
			if err != nil {
				return err
			}
			defer geoRepo.Close()
			if asnRepo != nil {
				defer asnRepo.Close()
			}

			p := policy.New(cfg.AllowedIPs, cfg.AllowedCountries)
			svc := service.NewAccessService(geoRepo, asnLookup(asnRepo), nil, nil, p, logger)

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			for _, ip := range args {
				d, err := svc.Decide(cmd.Context(), ip)
				if err != nil {
					return err
				}
				if err := enc.Encode(d); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
