package cmd

import (
	"log/slog"

	"github.com/shouni/go-ehon-kit/internal/pipeline"

	"github.com/spf13/cobra"
)

// pdfCmd は、生成済みの台本と挿絵からPDFとプレビューを組み立てるのだ。
var pdfCmd = &cobra.Command{
	Use:   "pdf",
	Short: "台本と挿絵からPDFを組み立てるのだ。",
	Long: `21×21cmの正方形判で表紙、献辞、本文の見開き、巻末ページ、裏表紙を
組版して final/ にPDFとHTMLプレビューを書き出すのだ。欠けている挿絵は
プレースホルダーになるので、後から差し替えて作り直せるのだよ。`,
	RunE: pdfCommand,
}

func pdfCommand(cmd *cobra.Command, args []string) error {
	if err := requireConfigFile(); err != nil {
		return err
	}
	cfg := loadRuntimeConfig()

	slog.Info("PDF組み立てモードを起動するのだ！",
		"config", cfg.Options.ConfigFile,
		"font_dir", cfg.Options.FontDir)

	return pipeline.ExecutePDFOnly(cmd.Context(), cfg)
}
