package builder

import (
	"context"
	"fmt"
	"time"

	"github.com/shouni/go-ehon-kit/internal/imaging"
	"github.com/shouni/go-ehon-kit/internal/progress"
	"github.com/shouni/go-ehon-kit/internal/runner"
	"github.com/shouni/go-ehon-kit/internal/vision"

	"github.com/patrickmn/go-cache"
	"github.com/shouni/gemini-image-kit/pkg/generator"
	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
	"google.golang.org/genai"
)

// InitializeAIClient は gemini クライアントを初期化します。
func InitializeAIClient(ctx context.Context, apiKey string) (gemini.GenerativeModel, error) {
	const defaultGeminiTemperature = float32(0.2)
	clientConfig := gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(defaultGeminiTemperature),
	}
	aiClient, err := gemini.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("AIクライアントの初期化に失敗しました: %w", err)
	}
	return aiClient, nil
}

// InitializeGenaiClient はマルチモーダル用途（写真解析・参照付き生成）の
// genai クライアントを初期化します。
func InitializeGenaiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genaiクライアントの初期化に失敗しました: %w", err)
	}
	return client, nil
}

// InitializeImageGenerator は ImageGeneratorを初期化します。
func InitializeImageGenerator(appCtx *AppContext) (generator.ImageGenerator, error) {
	imgCache := cache.New(30*time.Minute, 1*time.Hour)
	cacheTTL := 1 * time.Hour

	core, err := generator.NewGeminiImageCore(appCtx.httpClient, imgCache, cacheTTL)
	if err != nil {
		return nil, fmt.Errorf("GeminiImageCoreの初期化に失敗したのだ: %w", err)
	}

	imgGen, err := generator.NewGeminiGenerator(core, appCtx.aiClient, appCtx.ImageModel())
	if err != nil {
		return nil, fmt.Errorf("GeminiGeneratorの初期化に失敗したのだ: %w", err)
	}
	return imgGen, nil
}

// ImageModel は実際に使う画像生成モデル名を返すのだ。CLIの指定が優先される。
func (appCtx *AppContext) ImageModel() string {
	if appCtx.Options.ImageModel != "" {
		return appCtx.Options.ImageModel
	}
	return appCtx.Config.GeminiImageModel
}

// BuildPainter は挿絵生成の2系統（参照なし/参照あり）を束ねた Painter を構築します。
func BuildPainter(appCtx *AppContext) (imaging.Painter, error) {
	imgGen, err := InitializeImageGenerator(appCtx)
	if err != nil {
		return nil, err
	}
	return imaging.NewGeminiPainter(imgGen, appCtx.genClient, appCtx.ImageModel()), nil
}

// BuildStoryRunner は物語JSON生成を担当する Runner を構築します。
func BuildStoryRunner(appCtx *AppContext) runner.StoryRunner {
	return runner.NewBookStoryRunner(appCtx.Config, appCtx.BookConfig, appCtx.aiClient, appCtx.Layout)
}

// BuildVisionStore は写真の外見説明キャッシュ（descriptions.json）を構築します。
func BuildVisionStore(ctx context.Context, appCtx *AppContext) (*vision.Store, error) {
	analyzer, err := vision.NewAnalyzer(ctx, appCtx.Config.GeminiAPIKey, appCtx.Config.GeminiVisionModel)
	if err != nil {
		return nil, fmt.Errorf("写真解析クライアントの初期化に失敗したのだ: %w", err)
	}
	return vision.NewStore(appCtx.Layout.DescriptionsPath(), analyzer), nil
}

// BuildAvatarRunner は水彩アバター生成を担当する Runner を構築します。
func BuildAvatarRunner(appCtx *AppContext) (*runner.AvatarRunner, error) {
	painter, err := BuildPainter(appCtx)
	if err != nil {
		return nil, err
	}
	return runner.NewAvatarRunner(painter, appCtx.BookConfig, appCtx.Layout, appCtx.BaseDir), nil
}

// BuildImageRunner は挿絵の並列生成を担当する Runner を構築します。
func BuildImageRunner(appCtx *AppContext, tracker *progress.Tracker, descriptions map[string]string, avatarPath string) (runner.ImageRunner, error) {
	painter, err := BuildPainter(appCtx)
	if err != nil {
		return nil, err
	}
	return runner.NewBookImageRunner(
		painter,
		appCtx.Config,
		appCtx.BookConfig,
		appCtx.Layout,
		tracker,
		descriptions,
		avatarPath,
	), nil
}

// BuildRegenerateRunner は挿絵1枚の描き直しを担当する Runner を構築します。
func BuildRegenerateRunner(appCtx *AppContext, descriptions map[string]string, avatarPath string) (*runner.RegenerateRunner, error) {
	painter, err := BuildPainter(appCtx)
	if err != nil {
		return nil, err
	}
	return runner.NewRegenerateRunner(
		painter,
		appCtx.Config,
		appCtx.BookConfig,
		appCtx.Layout,
		descriptions,
		avatarPath,
	), nil
}
