package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/article-enhancer/internal/model"
)

var (
	articlesUpdated string
	articlesLimit   int
)

var articlesCmd = &cobra.Command{
	Use:   "articles",
	Short: "List stored articles as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("store"); err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		filter := model.ArticleFilter{Limit: articlesLimit}
		switch articlesUpdated {
		case "":
		case "true", "false":
			updated := articlesUpdated == "true"
			filter.Updated = &updated
		default:
			return eris.Errorf("--updated must be true or false, got %q", articlesUpdated)
		}

		articles, err := st.ListArticles(ctx, filter)
		if err != nil {
			return err
		}
		if articles == nil {
			articles = []model.Article{}
		}
		return printJSON(cmd.OutOrStdout(), articles)
	},
}

func init() {
	articlesCmd.Flags().StringVar(&articlesUpdated, "updated", "", "filter by enhancement state (true or false)")
	articlesCmd.Flags().IntVar(&articlesLimit, "limit", 0, "max articles to list")
	rootCmd.AddCommand(articlesCmd)
}
