package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/pipeline"
)

var (
	enhanceID    string
	enhanceLimit int
	enhanceDelay time.Duration
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Rewrite stored articles using web references",
	Long:  "Enhances one article (--id) or a batch of articles that are not yet updated. Batch articles are spaced by --delay.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "enhance", pipeline.WithDelay(enhanceDelay))
		if err != nil {
			return err
		}
		defer env.Close()

		// Without a rewrite backend every article would fail.
		if err := env.Rewriter.Err(); err != nil {
			return err
		}

		if enhanceID != "" {
			current, err := env.Store.GetArticle(ctx, enhanceID)
			if err != nil {
				return err
			}
			if err := pipeline.CheckPending(current); err != nil {
				return err
			}
			a, err := env.Enhancer.EnhanceArticle(ctx, enhanceID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), a)
		}

		res, err := env.Enhancer.EnhanceBatch(ctx, enhanceLimit)
		if err != nil {
			return err
		}
		zap.L().Info("enhance complete",
			zap.Int("total", res.Total()),
			zap.Int("succeeded", res.SuccessCount()),
			zap.Int("failed", res.FailureCount()),
		)
		return printJSON(cmd.OutOrStdout(), res)
	},
}

func init() {
	enhanceCmd.Flags().StringVar(&enhanceID, "id", "", "enhance a single article by id")
	enhanceCmd.Flags().IntVar(&enhanceLimit, "limit", 0, "max articles per batch (default from config)")
	enhanceCmd.Flags().DurationVar(&enhanceDelay, "delay", 2*time.Second, "minimum spacing between batch articles")
	rootCmd.AddCommand(enhanceCmd)
}
