package cli

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/RSBalchII/anchor/internal/app"
	"github.com/RSBalchII/anchor/internal/application/query"
	"github.com/RSBalchII/anchor/internal/domain/memory"
	"github.com/RSBalchII/anchor/internal/infrastructure/monitoring/logging"
)

var (
	searchQuery        string
	searchBuckets      []string
	searchMaxChars     int
	searchProvenance   string
	searchExplicitTags []string
	searchFilterType   string
	searchRepl         bool
	searchTimeout      time.Duration
)

// NewSearchCmd builds `anchor search`: a single run of the logical search
// entry point (§6.1), or a REPL loop over stdin when --repl is set, for
// local use and debugging.
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a query against the retrieval engine",
		Long:  "Parses a query, runs anchor search and the physics tag-walker, deduplicates,\ninflates context windows, and assembles a budget-constrained response.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}

			a, err := app.Bootstrap(cmd.Context(), cliCtx.Config)
			if err != nil {
				return fmt.Errorf("engine bootstrap failed: %w", err)
			}
			defer a.Close()

			if searchRepl {
				return runSearchRepl(cmd, a.Engine)
			}

			if strings.TrimSpace(searchQuery) == "" && len(args) > 0 {
				searchQuery = strings.Join(args, " ")
			}
			if strings.TrimSpace(searchQuery) == "" {
				return fmt.Errorf("search: --query is required unless --repl is set")
			}

			ctx, cancel := withTimeout(cmd.Context(), searchTimeout)
			defer cancel()

			resp := a.Engine.Search(ctx, query.Request{
				Query:        searchQuery,
				Buckets:      searchBuckets,
				MaxChars:     searchMaxChars,
				Provenance:   searchProvenance,
				ExplicitTags: searchExplicitTags,
				FilterType:   memory.MoleculeType(searchFilterType),
			})
			return PrintResult(cmd, resp)
		},
	}

	cmd.Flags().StringVarP(&searchQuery, "query", "q", "", "query text")
	cmd.Flags().StringSliceVar(&searchBuckets, "buckets", nil, "restrict to these buckets")
	cmd.Flags().IntVar(&searchMaxChars, "max-chars", 0, "character budget (0 = engine default)")
	cmd.Flags().StringVar(&searchProvenance, "provenance", "all", "provenance filter: internal|external|quarantine|all")
	cmd.Flags().StringSliceVar(&searchExplicitTags, "tags", nil, "explicit scope tags to seed the parser with")
	cmd.Flags().StringVar(&searchFilterType, "type", "", "restrict results to a molecule type: prose|code|data|log")
	cmd.Flags().BoolVar(&searchRepl, "repl", false, "read queries from stdin, one per line, until EOF")
	cmd.Flags().DurationVar(&searchTimeout, "timeout", 60*time.Second, "per-request deadline")

	return cmd
}

// runSearchRepl reads queries from stdin one line at a time for interactive
// local debugging of the retrieval pipeline, per §6.5's "once or as a REPL
// loop" requirement.
func runSearchRepl(cmd *cobra.Command, engine *query.Engine) error {
	fmt.Fprintln(cmd.OutOrStdout(), "anchor search REPL — enter a query, Ctrl-D to exit")
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(cmd.OutOrStdout(), "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ctx, cancel := withTimeout(cmd.Context(), searchTimeout)
		resp := engine.Search(ctx, query.Request{
			Query:        line,
			Buckets:      searchBuckets,
			MaxChars:     searchMaxChars,
			Provenance:   searchProvenance,
			ExplicitTags: searchExplicitTags,
			FilterType:   memory.MoleculeType(searchFilterType),
		})
		cancel()
		if err := PrintResult(cmd, resp); err != nil {
			logging.Default().Warn("failed to print search result", logging.Err(err))
		}
	}
}
