package config

import (
	"strconv"
	"time"

	"github.com/shouni/go-utils/envutil"
)

// デフォルト値の定義なのだ
const (
	DefaultModel       = "gemini-3-flash-preview"
	DefaultImageModel  = "gemini-3-pro-image-preview"
	DefaultVisionModel = "gemini-3-flash-preview"
	DefaultHTTPTimeout = 120 * time.Second
	DefaultRateLimit   = 15 * time.Second
	DefaultOutputDir   = "output"
	DefaultConfigFile  = "config.json"
	DefaultFontDir     = "fonts"
	DefaultServePort   = 8080
	DefaultMaxRetries  = 3

	// 水彩絵本スタイルの統一サフィックスなのだ。全ページの挿絵プロンプト末尾に付与される。
	DefaultImagePromptSuffix = "Soft watercolor children's book illustration, gentle pastel colors, warm and tender atmosphere, hand-painted texture, storybook art, full scene with background, no text, no letters, no words, no writing"

	// 挿絵に絶対に出したくない要素なのだ
	DefaultNegativePrompt = "text, letters, words, writing, captions, watermark, signature, photorealistic, 3D render, scary, dark, creepy"
)

// Config はアプリケーション全体の環境設定（APIキーやSMTP設定）を保持する構造体なのだ。
type Config struct {
	GeminiAPIKey      string
	GeminiModel       string
	GeminiImageModel  string
	GeminiVisionModel string
	ImagePromptSuffix string
	NegativePrompt    string

	// メール送付（任意）。未設定なら送付はスキップされるのだ。
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string

	Options GenerateOptions
}

// LoadConfig は環境変数から設定を読み込み、構造体を返すのだ！
func LoadConfig() *Config {
	cfg := &Config{
		GeminiAPIKey:      envutil.GetEnv("GEMINI_API_KEY", ""),
		GeminiModel:       envutil.GetEnv("GEMINI_MODEL", DefaultModel),
		GeminiImageModel:  envutil.GetEnv("IMAGE_GEMINI_MODEL", DefaultImageModel),
		GeminiVisionModel: envutil.GetEnv("VISION_GEMINI_MODEL", DefaultVisionModel),
		ImagePromptSuffix: envutil.GetEnv("IMAGE_PROMPT_SUFFIX", DefaultImagePromptSuffix),
		NegativePrompt:    envutil.GetEnv("IMAGE_NEGATIVE_PROMPT", DefaultNegativePrompt),
		SMTPHost:          envutil.GetEnv("SMTP_HOST", ""),
		SMTPPort:          envAsInt("SMTP_PORT", 587),
		SMTPUser:          envutil.GetEnv("SMTP_USER", ""),
		SMTPPassword:      envutil.GetEnv("SMTP_PASSWORD", ""),
		SMTPFrom:          envutil.GetEnv("SMTP_FROM", ""),
	}
	return cfg
}

// envAsInt は整数型の環境変数を読むのだ。パース不能なら既定値に倒す。
func envAsInt(key string, fallback int) int {
	v := envutil.GetEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GenerateOptions は CLI フラグから渡される実行時のパラメータなのだ。
type GenerateOptions struct {
	// 入出力関連
	ConfigFile string // --config: 絵本設定 config.json のパス
	OutputDir  string // --output-dir: 生成物のルートディレクトリ
	FontDir    string // --font-dir: PDF組版用フォントの置き場所

	// AI挙動設定
	AIModel    string // --model: テキスト生成用のGeminiモデル
	ImageModel string // --image-model: 画像生成用のGeminiモデル

	// 画像生成の制御
	RetryFailed bool          // --retry-failed: 失敗ページのみ再生成
	RateLimit   time.Duration // --rate-limit: 画像APIの呼び出し間隔

	// 再生成（regenerate）の制御
	EditPrompt bool // --edit-prompt: 再生成前にプロンプトを対話編集
	Cascade    bool // --cascade: 表紙を起点に全ページへ波及再生成

	// 実行制御
	HTTPTimeout time.Duration // --http-timeout
	SkipMail    bool          // --no-email: 完了メールを送らない
	Port        int           // --port: serve コマンドの待ち受けポート

	// PublishDir は完成物（PDF・プレビュー）の追加書き出し先。
	// gs:// を含むリモートパスも指定できる。空なら追加書き出しはしない。
	PublishDir string // --publish-dir
}
