package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pgdta/dta/internal/hypo"
	"github.com/pgdta/dta/internal/model"
	"github.com/pgdta/dta/internal/output"
	"github.com/pgdta/dta/internal/pgdriver"
	"github.com/pgdta/dta/internal/session"
)

var recommendCmd = &cobra.Command{
	Use:          "recommend",
	Short:        "Recommend indexes for a SQL workload (analyze_workload)",
	SilenceUsage: true,
	Long: `Analyze a SQL workload against the connected database and recommend a set
of secondary indexes that minimize a cost/space objective without exceeding
the storage and time budgets.

The workload is taken from (first hit wins): --query (repeatable) →
--file (a ;-delimited SQL file) → pg_stat_statements, filtered by
--min-calls/--min-avg-time-ms and limited by --limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		queries, _ := cmd.Flags().GetStringArray("query")
		sqlFile, _ := cmd.Flags().GetString("file")
		minCalls, _ := cmd.Flags().GetInt64("min-calls")
		minAvgTimeMs, _ := cmd.Flags().GetFloat64("min-avg-time-ms")
		limit, _ := cmd.Flags().GetInt("limit")
		maxIndexSizeMB, _ := cmd.Flags().GetInt64("max-index-size-mb")
		maxRuntimeSeconds, _ := cmd.Flags().GetFloat64("max-runtime-seconds")

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
		orch := session.NewOrchestrator(driver, mgr, version)

		cfg := model.DefaultConfig()
		if viper.IsSet("defaults.min_time_improvement") {
			cfg.MinTimeImprovement = viper.GetFloat64("defaults.min_time_improvement")
		}
		if viper.IsSet("defaults.min_column_usage") {
			cfg.MinColumnUsage = viper.GetInt("defaults.min_column_usage")
		}
		if viper.IsSet("defaults.max_index_width") {
			cfg.MaxIndexWidth = viper.GetInt("defaults.max_index_width")
		}
		if !cmd.Flags().Changed("max-index-size-mb") && viper.IsSet("defaults.max_index_size_mb") {
			maxIndexSizeMB = viper.GetInt64("defaults.max_index_size_mb")
		}
		if !cmd.Flags().Changed("max-runtime-seconds") && viper.IsSet("defaults.max_runtime_seconds") {
			maxRuntimeSeconds = viper.GetFloat64("defaults.max_runtime_seconds")
		}
		cfg.MaxIndexSizeMB = maxIndexSizeMB
		cfg.MaxRuntimeSeconds = maxRuntimeSeconds

		req := session.Request{
			QueryList:    queries,
			SQLFile:      strings.TrimSpace(sqlFile),
			MinCalls:     minCalls,
			MinAvgTimeMs: minAvgTimeMs,
			Limit:        limit,
			Config:       cfg,
		}

		sess := orch.AnalyzeWorkload(ctx, req)

		format := viper.GetString("format")
		renderer := output.NewRenderer(format, os.Stdout)
		renderer.RenderSession(sess)

		if viper.GetBool("verbose") {
			for _, line := range sess.Trace {
				fmt.Fprintln(os.Stderr, "[trace]", line)
			}
		}

		if sess.Err != nil {
			return fmt.Errorf("session failed: %w", sess.Err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)
	recommendCmd.Flags().StringArray("query", nil, "A query to include in the workload (repeatable)")
	recommendCmd.Flags().String("file", "", "Read the workload from a ;-delimited SQL file")
	recommendCmd.Flags().Int64("min-calls", 50, "Minimum call count for the pg_stat_statements fallback source")
	recommendCmd.Flags().Float64("min-avg-time-ms", 5.0, "Minimum average execution time (ms) for the pg_stat_statements fallback source")
	recommendCmd.Flags().Int("limit", 100, "Maximum number of queries to pull from pg_stat_statements")
	recommendCmd.Flags().Int64("max-index-size-mb", -1, "Storage budget in MB; negative disables it")
	recommendCmd.Flags().Float64("max-runtime-seconds", 0, "Wall-clock budget for the search; 0 is unlimited")
}
