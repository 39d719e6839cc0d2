package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-ehon-kit/internal/pipeline"
	"github.com/shouni/go-ehon-kit/internal/wizard"

	"github.com/spf13/cobra"
)

// interactiveCmd は、対話フォームで設定を作ってそのまま生成まで走らせるのだ。
var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "対話フォームで config.json を作成し、続けて生成するのだ。",
	Long: `子どもの情報、本のテーマ、脇役などを質問形式で入力して config.json を
書き出すのだ。最終確認で承認すると完全パイプラインがそのまま走るのだよ。`,
	RunE: interactiveCommand,
}

func interactiveCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	configPath, err := wizard.New(".").Run()
	if err != nil {
		return fmt.Errorf("対話フォームの実行中にエラーが発生したのだ: %w", err)
	}
	if configPath == "" {
		// 最終確認で拒否された。エラーではないのでそのまま終わる。
		return nil
	}

	cfg := loadRuntimeConfig()
	cfg.Options.ConfigFile = configPath

	slog.Info("フォームの内容で生成を開始するのだ！", "config", configPath)
	return pipeline.Execute(ctx, cfg)
}
