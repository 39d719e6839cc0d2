package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"

	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/internal/config"
	"github.com/shouni/go-ehon-kit/internal/prompt"
	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// StoryRunner は、絵本一冊分の物語JSONを生成するためのインターフェースなのだ。
type StoryRunner interface {
	// Run は物語生成を実行し、構造化された絵本コンテンツを返すのだ。
	Run(ctx context.Context) (*domain.BookContent, error)
}

// BookStoryRunner は、設定からプロンプトを組み立てて物語を生成する実体なのだ。
type BookStoryRunner struct {
	cfg      *config.Config
	bookCfg  *domain.BookConfig
	aiClient gemini.GenerativeModel
	layout   *artifact.Layout
}

// NewBookStoryRunner は BookStoryRunner の新しいインスタンスを返すのだ。
func NewBookStoryRunner(
	cfg *config.Config,
	bookCfg *domain.BookConfig,
	ai gemini.GenerativeModel,
	layout *artifact.Layout,
) *BookStoryRunner {
	return &BookStoryRunner{
		cfg:      cfg,
		bookCfg:  bookCfg,
		aiClient: ai,
		layout:   layout,
	}
}

// Run はプロンプト構築、AIによる生成、応答のパース、保存までを一気に行うのだ。
func (sr *BookStoryRunner) Run(ctx context.Context) (*domain.BookContent, error) {
	userPrompt, err := prompt.BuildStoryUserPrompt(sr.bookCfg)
	if err != nil {
		return nil, err
	}
	fullPrompt := prompt.StorySystemPrompt + "\n\n" + userPrompt

	// 既存の book_content.json があれば .bak に退避してから再生成する
	if err := sr.backupExisting(); err != nil {
		return nil, err
	}

	model := sr.cfg.GeminiModel
	if sr.cfg.Options.AIModel != "" {
		model = sr.cfg.Options.AIModel
	}

	slog.Info("物語の生成を開始するのだ", "model", model, "child", sr.bookCfg.Child.FirstName)
	start := time.Now()

	raw, err := sr.generateWithRetry(ctx, fullPrompt, model)
	if err != nil {
		return nil, fmt.Errorf("物語の生成に失敗したのだ: %w", err)
	}
	slog.Info("応答を受信したのだ", "elapsed", time.Since(start).Round(time.Second), "chars", len(raw))

	content, err := ExtractBookContent(raw)
	if err != nil {
		// デバッグ用に生の応答を退避しておく
		if werr := os.WriteFile(sr.layout.RawResponsePath(), []byte(raw), 0o644); werr == nil {
			slog.Error("JSONパースに失敗したため生応答を保存したのだ", "path", sr.layout.RawResponsePath())
		}
		return nil, err
	}

	for _, problem := range content.Validate() {
		slog.Warn("生成内容の検証警告なのだ", "problem", problem)
	}

	if err := sr.save(content); err != nil {
		return nil, err
	}

	slog.Info("物語の生成が完了したのだ",
		"title", content.Title,
		"pages", len(content.Pages),
		"image_prompts", len(content.IllustratedPages()),
	)
	return content, nil
}

// generateWithRetry は一時的なAPI過負荷（429/503系）を指数バックオフで再試行するのだ。
func (sr *BookStoryRunner) generateWithRetry(ctx context.Context, fullPrompt, model string) (string, error) {
	var raw string
	operation := func() error {
		resp, err := sr.aiClient.GenerateContent(ctx, fullPrompt, model)
		if err != nil {
			if isOverloaded(err) {
				return err // リトライ対象
			}
			return backoff.Permanent(err)
		}
		raw = resp.Text
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), config.DefaultMaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return "", err
	}
	return raw, nil
}

// isOverloaded は再試行する価値のあるエラーかを判定するのだ。
func isOverloaded(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"overloaded", "resource_exhausted", "unavailable", "429", "503", "deadline"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (sr *BookStoryRunner) backupExisting() error {
	path := sr.layout.ContentPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("既存コンテンツの読み込みに失敗したのだ: %w", err)
	}
	slog.Info("既存の book_content.json を退避して再生成するのだ", "backup", path+".bak")
	if err := os.WriteFile(path+".bak", data, 0o644); err != nil {
		return fmt.Errorf("既存コンテンツの退避に失敗したのだ: %w", err)
	}
	return nil
}

func (sr *BookStoryRunner) save(content *domain.BookContent) error {
	data, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("コンテンツのエンコードに失敗したのだ: %w", err)
	}
	if err := os.WriteFile(sr.layout.ContentPath(), data, 0o644); err != nil {
		return fmt.Errorf("コンテンツの保存に失敗したのだ: %w", err)
	}
	return nil
}
