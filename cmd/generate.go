package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/go-ehon-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// generateCmd は、設定ファイルから絵本一冊を丸ごと生成するのだ。
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "config.json から絵本一冊を丸ごと生成するのだ。",
	Long: `物語テキスト、アバター、挿絵、PDFの順に完全パイプラインを実行するのだ。
中断しても再実行すれば生成済みのページはスキップされるのだよ。`,
	RunE: generateCommand,
}

func generateCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := requireConfigFile(); err != nil {
		return err
	}
	cfg := loadRuntimeConfig()

	slog.Info("絵本生成パイプラインを起動するのだ！",
		"config", cfg.Options.ConfigFile,
		"output", cfg.Options.OutputDir)

	start := time.Now()
	if err := pipeline.Execute(ctx, cfg); err != nil {
		return fmt.Errorf("パイプライン実行中にエラーが発生したのだ: %w", err)
	}

	slog.Info("すべての生成工程が完了したのだ！", "elapsed", time.Since(start).Round(time.Second))
	return nil
}
