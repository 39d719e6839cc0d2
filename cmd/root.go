package cmd

import (
	"fmt"
	"os"

	"github.com/shouni/go-ehon-kit/internal/config"

	clibase "github.com/shouni/go-cli-base"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// opts は、全サブコマンドで共有される実行時パラメータなのだ。
// addAppFlags でコマンドラインフラグと紐付けられる。
var opts config.GenerateOptions

// addAppFlags は、アプリケーション全般に適用されるグローバルフラグを定義するのだ。
func addAppFlags(rootCmd *cobra.Command) {
	// --- 入出力関連 ---
	rootCmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", config.DefaultConfigFile, "絵本設定 config.json のパスなのだ。")
	rootCmd.PersistentFlags().StringVarP(&opts.OutputDir, "output-dir", "o", config.DefaultOutputDir, "生成物を置くディレクトリなのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.FontDir, "font-dir", config.DefaultFontDir, "PDF組版用フォント（Quicksand）の置き場所なのだ。")
	rootCmd.PersistentFlags().StringVar(&opts.PublishDir, "publish-dir", "", "完成物の追加書き出し先（ローカル or gs://...）なのだ。")

	// --- AIモデル・挙動設定 ---
	rootCmd.PersistentFlags().StringVar(&opts.AIModel, "model", "", "テキスト生成用の Gemini モデル名なのだ（未指定なら環境設定）。")
	rootCmd.PersistentFlags().StringVar(&opts.ImageModel, "image-model", "", "画像生成用の Gemini モデル名なのだ（未指定なら環境設定）。")
	rootCmd.PersistentFlags().DurationVar(&opts.HTTPTimeout, "http-timeout", config.DefaultHTTPTimeout, "Webリクエストのタイムアウトなのだ。")
	rootCmd.PersistentFlags().DurationVar(&opts.RateLimit, "rate-limit", config.DefaultRateLimit, "画像APIの呼び出し間隔なのだ。")

	// --- 実行制御 ---
	rootCmd.PersistentFlags().BoolVar(&opts.SkipMail, "no-email", false, "完成通知メールを送らないのだ。")

	// サブコマンド固有のフラグ
	imageCmd.Flags().BoolVar(&opts.RetryFailed, "retry-failed", false, "失敗したページだけを拾い直すのだ。")
	regenerateCmd.Flags().BoolVar(&opts.EditPrompt, "edit-prompt", false, "再生成前にプロンプトを対話編集するのだ。")
	regenerateCmd.Flags().BoolVar(&opts.Cascade, "cascade", false, "表紙の再生成後、残り全ページへ新しい画風を波及させるのだ。")
	serveCmd.Flags().IntVarP(&opts.Port, "port", "p", config.DefaultServePort, "Web UIの待ち受けポートなのだ。")
}

// preRunAppE は、コマンド実行前に環境変数などの必須チェックを行うのだ。
func preRunAppE(cmd *cobra.Command, args []string) error {
	// .env があれば読み込む。無くてもエラーにはしない。
	_ = godotenv.Load()

	// Gemini APIを利用するため、APIキーの存在チェックは欠かせないのだ！
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY が設定されていません。Gemini APIの利用には必須なのだ")
	}
	return nil
}

// requireConfigFile は config.json の存在を確認するのだ。
func requireConfigFile() error {
	if opts.ConfigFile == "" {
		opts.ConfigFile = config.DefaultConfigFile
	}
	if _, err := os.Stat(opts.ConfigFile); err != nil {
		return fmt.Errorf("設定ファイル '%s' が見つからないのだ。interactive コマンドで作成できるのだ: %w", opts.ConfigFile, err)
	}
	return nil
}

// loadRuntimeConfig は環境変数とフラグから実行時設定を組み立てるのだ。
func loadRuntimeConfig() *config.Config {
	cfg := config.LoadConfig()
	cfg.Options = opts
	return cfg
}

// Execute は、アプリケーションのメインエントリポイントなのだ。
// main.go から呼び出されて、cobra のコマンドライン解析を開始するのだよ。
func Execute() {
	clibase.Execute(
		"go-ehon-kit",
		addAppFlags,
		preRunAppE,
		interactiveCmd,
		generateCmd,
		textCmd,
		imageCmd,
		pdfCmd,
		regenerateCmd,
		previewCmd,
		serveCmd,
	)
}
