package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sceneforge/internal/logging"
	"sceneforge/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the refinement HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger := logging.NewComponentLogger("main")

			dump, err := cfg.Dump()
			if err != nil {
				return err
			}
			logger.Info("effective configuration:\n%s", dump)

			container, err := buildContainer(cfg)
			if err != nil {
				return fmt.Errorf("initialize services: %w", err)
			}

			srv, err := server.New(server.Config{
				Server:      cfg.Server,
				Refiner:     container.Engine,
				Registry:    container.Registry,
				Bridge:      container.Bridge,
				Statuses:    container.Statuses,
				StatusSweep: cfg.MeshGen.StatusSweep(),
				Version:     Version,
				Logger:      logging.NewComponentLogger("server"),
				Debug:       debug,
			})
			if err != nil {
				return err
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "run the HTTP layer in debug mode")
	return cmd
}
