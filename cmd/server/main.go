package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/yukikurage/team-taskboard/internal/config"
	"github.com/yukikurage/team-taskboard/internal/database"
)

// rootOptions holds flags shared by every command.
type rootOptions struct {
	ConfigPath  string
	Port        string
	DatabaseURL string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Printf("taskboard: %v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "taskboard",
		Short:         "Team task board API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file (default $CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", "", "store connection string (overrides DATABASE_URL)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))

	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Migrate the store and start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Port, "port", "", "listen port (overrides PORT)")

	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			db, err := database.Connect(cfg.DatabaseURL, !cfg.IsRelease())
			if err != nil {
				return err
			}
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			defer sqlDB.Close()

			return database.Migrate(db)
		},
	}
}

// loadConfig reads the configuration and applies explicit flags on top.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Port != "" {
		cfg.Port = opts.Port
	}
	if opts.DatabaseURL != "" {
		cfg.DatabaseURL = opts.DatabaseURL
	}
	return cfg, nil
}
