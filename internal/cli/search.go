package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/searcher/executor"
)

var (
	searchLimit   int
	searchJSON    bool
	searchBoolean bool
	searchDir     string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored documents",
	Long: `Ranks the stored documents against the query with BM25 and prints the
best matches. Documents come from the configured store and, when set, the
corpus directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	searchCmd.Flags().BoolVar(&searchBoolean, "boolean", false, "honour AND, OR and NOT operators")
	searchCmd.Flags().StringVarP(&searchDir, "dir", "d", "", "directory of text files to search (overrides corpus.dir)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	engine, _, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	if _, _, err := loadCorpus(ctx, engine, cfg, searchDir); err != nil {
		return err
	}

	result, err := engine.Execute(ctx, engine.Plan(args[0], searchBoolean), searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	if searchJSON {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printResults(cmd, engine, result)
	return nil
}

func printResults(cmd *cobra.Command, engine *indexer.Engine, result *executor.SearchResult) {
	if len(result.Results) == 0 {
		cmd.Println("No results found.")
		return
	}
	cmd.Printf("%d of %d matching documents:\n\n", len(result.Results), result.TotalHits)
	for i, r := range result.Results {
		title := fmt.Sprintf("document %d", r.DocID)
		if doc, err := engine.GetDocument(r.DocID); err == nil && doc.Title != "" {
			title = doc.Title
		}
		cmd.Printf("  [%d] %s (id %d, score %.4f)\n", i+1, title, r.DocID, r.Score)
	}
}
