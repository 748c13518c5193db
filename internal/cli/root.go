// Package cli implements the docsearch command line: the HTTP/RPC server,
// the MCP server and one-shot index and search commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/logger"
)

// version is set at build time with -ldflags "-X ...cli.version=...".
var version = "dev"

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docsearch",
	Short: "Document indexing and BM25 retrieval",
	Long: `docsearch stores text documents, keeps an inverted index over them and
ranks them against keyword queries with Okapi BM25.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
		// Only serve keeps stdout for logs; other commands print results
		// there, and the MCP stdio transport owns it.
		var w io.Writer = os.Stderr
		if cmd == serveCmd {
			w = os.Stdout
		}
		logger.SetupWriter(w, cfg.Logging.Level, cfg.Logging.Format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML or TOML config file")
}

// Execute runs the command line with ctx cancelled on shutdown signals.
func Execute(ctx context.Context) error {
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}
