package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/mcp"
)

var (
	mcpTransport string
	mcpAddr      string
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server",
	Long: `Run the Model Context Protocol server as a read-only content endpoint
over the document collection.

By default the server communicates over stdio and can be registered with
any MCP-compatible assistant. Use --transport http to serve streamable HTTP
instead.

Examples:
  # Stdio mode, serving the text files in ./articles
  docsearch mcp -c docsearch.yaml

  # HTTP mode
  docsearch mcp --transport http --addr :8090`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&mcpTransport, "transport", "", "stdio or http (overrides mcp.transport)")
	mcpCmd.Flags().StringVar(&mcpAddr, "addr", "", "listen address for the http transport (overrides mcp.addr)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	transport := cfg.MCP.Transport
	if mcpTransport != "" {
		transport = mcpTransport
	}
	addr := cfg.MCP.Addr
	if mcpAddr != "" {
		addr = mcpAddr
	}
	if transport != "stdio" && transport != "http" {
		return fmt.Errorf("unknown transport %q", transport)
	}

	engine, _, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	loader, loaded, err := loadCorpus(ctx, engine, cfg, "")
	if err != nil {
		return err
	}
	slog.Info("mcp collection ready", "documents", engine.DocumentCount(), "corpus_loaded", loaded)
	if cfg.Corpus.Watch && cfg.Corpus.Dir != "" {
		go func() {
			if err := loader.Watch(ctx, cfg.Corpus.Dir); err != nil {
				slog.Error("corpus watch stopped", "error", err)
			}
		}()
	}

	server, err := mcp.NewServer(engine, cfg.Search.MaxResults)
	if err != nil {
		return err
	}
	if transport == "http" {
		return server.RunHTTP(ctx, addr)
	}
	return server.Run(ctx)
}
