package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gearsage/gearsage-go/internal/embedder"
	"github.com/gearsage/gearsage-go/internal/generator"
	"github.com/gearsage/gearsage-go/internal/logging"
	"github.com/gearsage/gearsage-go/internal/recommend"
)

// NewAskCmd constructs the `gearsage ask` command, which answers a single
// natural language product question grounded in the indexed catalog.
func NewAskCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask for a gaming gear recommendation",
		Long: `Ask GearSage a natural language question about gaming peripherals.

The answer is grounded in the ingested product catalog and cites the
product ids it relied on. Run 'gearsage ingest' first to populate the index.

Examples:
  gearsage ask "best lightweight wireless mouse for FPS under 100 euro?"
  gearsage ask --top-k 8 "quiet mechanical keyboard for a shared office"
  gearsage ask "headset with good mic for competitive play"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ask: failed to initialise embedder: %w", err)
			}

			store, _, closeStore, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer closeStore()

			retriever, err := buildRetriever(emb, store)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			chatModel, err := generator.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise model provider: %w", err)
			}

			rec, err := recommend.New(recommendConfig(retriever, chatModel))
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			question := strings.Join(args, " ")
			resp, err := rec.Recommend(ctx, question, topK)
			if err != nil {
				return err //nolint:wrapcheck // CLI entry point — error goes directly to cobra
			}

			fmt.Println(resp.Answer)
			if len(resp.CitedProductIDs) > 0 {
				fmt.Printf("\nProducts cited: %s\n", strings.Join(resp.CitedProductIDs, ", "))
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of catalog products to ground the answer in (default 5)")

	return cmd
}
