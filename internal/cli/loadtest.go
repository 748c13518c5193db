package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/loadtest"
)

var (
	loadURL         string
	loadConcurrency int
	loadDuration    time.Duration
	loadQueries     []string
	loadRate        float64
)

var loadtestCmd = &cobra.Command{
	Use:   "loadtest",
	Short: "Send concurrent search traffic to a running server",
	Long: `Runs search queries against the HTTP API of a running docsearch server
and reports throughput, latency percentiles and status codes.`,
	Args: cobra.NoArgs,
	RunE: runLoadtest,
}

func init() {
	loadtestCmd.Flags().StringVar(&loadURL, "url", "", "base URL of the server (default http://localhost:<server.port>)")
	loadtestCmd.Flags().IntVarP(&loadConcurrency, "concurrency", "w", 10, "number of concurrent workers")
	loadtestCmd.Flags().DurationVar(&loadDuration, "duration", 30*time.Second, "test duration")
	loadtestCmd.Flags().StringArrayVarP(&loadQueries, "query", "q", nil, "query to send (repeatable)")
	loadtestCmd.Flags().Float64Var(&loadRate, "rate", 0, "maximum requests per second, 0 for unthrottled")
	rootCmd.AddCommand(loadtestCmd)
}

func runLoadtest(cmd *cobra.Command, _ []string) error {
	target := loadURL
	if target == "" {
		target = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
	}
	cmd.Printf("load testing %s with %d workers for %s\n\n", target, loadConcurrency, loadDuration)

	report, err := loadtest.Run(cmd.Context(), loadtest.Config{
		BaseURL:     target,
		Concurrency: loadConcurrency,
		Duration:    loadDuration,
		Queries:     loadQueries,
		Limit:       cfg.Search.DefaultLimit,
		Rate:        loadRate,
	})
	if err != nil {
		return err
	}
	report.Print(cmd.OutOrStdout())
	if report.Total == 0 {
		return fmt.Errorf("no requests completed against %s", target)
	}
	return nil
}
