package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgdta/dta/internal/hypo"
	"github.com/pgdta/dta/internal/output"
	"github.com/pgdta/dta/internal/pgdriver"
)

var connectCmd = &cobra.Command{
	Use:          "connect",
	Short:        "Test connection and report precheck status",
	SilenceUsage: true,
	Long:         `Connect to a PostgreSQL database, report its version, and check whether the hypopg extension is installed — the Session Orchestrator's first precondition.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		connCfg := connectionConfigFromViper()

		if connCfg.Password == "" {
			connCfg.Password = pgdriver.PromptPassword()
		}

		ctx := context.Background()
		pool, err := pgdriver.Connect(ctx, connCfg)
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		defer pool.Close()

		driver := pgdriver.NewSqlDriver(pool)
		version, err := pgdriver.GetServerVersion(ctx, driver)
		if err != nil {
			return fmt.Errorf("version detection failed: %w", err)
		}

		mgr := hypo.NewManager(driver)
		installed, err := mgr.Installed(ctx)
		if err != nil {
			return fmt.Errorf("checking hypopg: %w", err)
		}

		format := viper.GetString("format")
		renderer := output.NewRenderer(format, os.Stdout)
		renderer.RenderConnection(connCfg, version, installed)

		return nil
	},
}

func connectionConfigFromViper() pgdriver.ConnectionConfig {
	cfg := pgdriver.ConnectionConfig{
		Host:     viper.GetString("host"),
		Port:     viper.GetInt("port"),
		User:     viper.GetString("user"),
		Password: viper.GetString("password"),
		Database: viper.GetString("database"),
		SSLMode:  viper.GetString("sslmode"),
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.User == "" {
		cfg.User = "dta"
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(connectCmd)
}
