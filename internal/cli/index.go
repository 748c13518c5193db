package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Load a directory of text files into the store",
	Long: `Adds every text file under dir (default corpus.dir) to the configured
document store and writes an index checkpoint. With the memory backend
nothing outlives the command, so use sqlite or postgres.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if cfg.Storage.Backend == config.BackendMemory {
		slog.Warn("memory backend selected, indexed documents will not persist")
	}
	var dir string
	if len(args) == 1 {
		dir = args[0]
	}
	if dir == "" && cfg.Corpus.Dir == "" {
		return cmd.Usage()
	}

	engine, _, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	_, n, err := loadCorpus(ctx, engine, cfg, dir)
	if err != nil {
		return err
	}
	path, err := engine.Checkpoint()
	if err != nil {
		return err
	}
	stats := engine.Stats()
	cmd.Printf("indexed %d files; %d documents, %d terms\n", n, stats.Documents, stats.Index.TermCount)
	if path != "" {
		cmd.Printf("checkpoint written to %s\n", path)
	}
	return nil
}
