package cmd

import (
	"log/slog"

	"github.com/shouni/go-ehon-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// textCmd は、物語テキスト（book_content.json）の生成だけを行うのだ。
var textCmd = &cobra.Command{
	Use:   "text",
	Short: "物語テキストだけを生成するのだ。",
	Long: `config.json から30ページ構成の物語JSONを生成して保存するのだ。
挿絵やPDFには進まないので、文章だけ先に確認・手直ししたい場合に便利なのだ。`,
	RunE: textCommand,
}

func textCommand(cmd *cobra.Command, args []string) error {
	if err := requireConfigFile(); err != nil {
		return err
	}
	cfg := loadRuntimeConfig()

	slog.Info("テキスト生成モードを起動するのだ！",
		"config", cfg.Options.ConfigFile,
		"model", textModelLabel(cfg.GeminiModel, cfg.Options.AIModel))

	return pipeline.ExecuteTextOnly(cmd.Context(), cfg)
}

func textModelLabel(envModel, flagModel string) string {
	if flagModel != "" {
		return flagModel
	}
	return envModel
}
