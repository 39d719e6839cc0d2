package cmd

import (
	"log/slog"

	"github.com/shouni/go-ehon-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// imageCmd は、生成済みの台本JSONから挿絵生成フェーズだけを実行するのだ。
// 生成済みのページはスキップされるため、--retry-failed での拾い直しや
// 中断後の再開もこのコマンドで済むのだ。
var imageCmd = &cobra.Command{
	Use:   "image",
	Short: "台本JSONから挿絵を生成するのだ。",
	Long: `text コマンドで生成済みの book_content.json を読み込み、表紙と本文の
挿絵を並列生成するのだ。失敗や中断で欠けたページだけを再実行できるのだよ。`,
	RunE: imageCommand,
}

func imageCommand(cmd *cobra.Command, args []string) error {
	if err := requireConfigFile(); err != nil {
		return err
	}
	cfg := loadRuntimeConfig()

	if cfg.Options.RetryFailed {
		slog.Info("失敗ページの拾い直しモードなのだ。生成済みページはそのまま残すのだ")
	}
	slog.Info("挿絵生成モードを起動するのだ！",
		"config", cfg.Options.ConfigFile,
		"rate_limit", cfg.Options.RateLimit)

	return pipeline.ExecuteImagesOnly(cmd.Context(), cfg)
}
