package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var collectEnrich bool

// 仅执行一轮全量采集后退出，适合手动触发
var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "采集一轮全部分类的头条后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appCfg)
		if err != nil {
			return err
		}
		defer a.Close()

		articles, err := a.news.FetchAllCategories(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "collected %d articles\n", len(articles))

		if collectEnrich {
			n, err := a.news.EnrichRecent(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enriched %d articles\n", n)
		}
		return nil
	},
}

func init() {
	collectCmd.Flags().BoolVar(&collectEnrich, "enrich", false, "scrape article pages to fill missing images and descriptions")
}
