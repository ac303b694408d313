package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/LJTian/NewsHub/internal/config"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	appCfg  *config.Config
)

var rootCmd = &cobra.Command{
	Use:          "newshub",
	Short:        "NewsHub 新闻聚合与推荐服务",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appCfg = cfg
		setupLogger(cfg.App.LogLevel)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	rootCmd.AddCommand(serveCmd, collectCmd, cleanupCmd, jobCmd)
}

// setupLogger 文本格式输出到 stderr，级别取自 LOG_LEVEL，无法识别时用 info
func setupLogger(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
