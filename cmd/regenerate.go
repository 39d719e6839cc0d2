package cmd

import (
	"fmt"
	"log/slog"

	"github.com/shouni/go-ehon-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// regenerateCmd は、気に入らない挿絵を1枚だけ描き直すのだ。
var regenerateCmd = &cobra.Command{
	Use:   "regenerate <page>",
	Short: "挿絵を1枚描き直すのだ。",
	Long: `ページ番号（例: 7）または cover_front / cover_back を指定して挿絵を
再生成するのだ。元の画像は images_backup/ に版付きで退避され、失敗時は
自動で復元されるのだよ。--cascade を付けて表紙を描き直すと、新しい画風を
残りの全ページへ波及させるか確認されるのだ。`,
	Args: cobra.ExactArgs(1),
	RunE: regenerateCommand,
}

func regenerateCommand(cmd *cobra.Command, args []string) error {
	if err := requireConfigFile(); err != nil {
		return err
	}
	cfg := loadRuntimeConfig()

	page := args[0]
	slog.Info("挿絵の再生成を開始するのだ！",
		"page", page,
		"edit_prompt", cfg.Options.EditPrompt,
		"cascade", cfg.Options.Cascade)

	if err := pipeline.ExecuteRegenerate(cmd.Context(), cfg, page); err != nil {
		return fmt.Errorf("ページ %s の再生成に失敗したのだ: %w", page, err)
	}
	return nil
}
