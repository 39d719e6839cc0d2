package cmd

import (
	"log/slog"

	"github.com/shouni/go-ehon-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// previewCmd は、印刷前確認用のHTMLプレビューだけを書き出すのだ。
var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "HTMLプレビューを書き出すのだ。",
	Long: `本と同じ見開き構成のHTMLを final/preview.html に書き出すのだ。
PDFを組む前にブラウザで文章と挿絵の組み合わせを確認できるのだよ。`,
	RunE: previewCommand,
}

func previewCommand(cmd *cobra.Command, args []string) error {
	if err := requireConfigFile(); err != nil {
		return err
	}
	cfg := loadRuntimeConfig()

	slog.Info("プレビュー生成モードを起動するのだ！", "config", cfg.Options.ConfigFile)
	return pipeline.ExecutePreview(cmd.Context(), cfg)
}
