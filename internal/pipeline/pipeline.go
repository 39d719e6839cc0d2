// Package pipeline は絵本生成の各フェーズを束ねる実行層なのだ。
// CLIのサブコマンドとWebサーバーの両方がここを呼ぶ。
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/internal/builder"
	"github.com/shouni/go-ehon-kit/internal/config"
	"github.com/shouni/go-ehon-kit/internal/mailer"
	"github.com/shouni/go-ehon-kit/internal/progress"
	"github.com/shouni/go-ehon-kit/internal/runner"
	"github.com/shouni/go-ehon-kit/pkg/domain"
	"github.com/shouni/go-ehon-kit/pkg/publisher"

	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/shouni/go-remote-io/pkg/gcsfactory"
	"github.com/shouni/go-utils/urlpath"
)

// Execute は 完全パイプライン（テキスト → アバター → 挿絵 → PDF → メール）を実行するのだ。
func Execute(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	tracker := progress.NewTracker(appCtx.Layout.StatusPath())

	if err := run(ctx, appCtx, tracker); err != nil {
		if terr := tracker.Fail(err); terr != nil {
			slog.Warn("進捗のエラー記録に失敗したのだ", "error", terr)
		}
		return err
	}
	return nil
}

func run(ctx context.Context, appCtx *builder.AppContext, tracker *progress.Tracker) error {
	// --- Phase 1: 物語の生成 ---
	if err := tracker.Set(progress.PhaseText, "物語を生成中"); err != nil {
		return err
	}
	content, err := builder.BuildStoryRunner(appCtx).Run(ctx)
	if err != nil {
		return err
	}

	// --- Phase 2: 写真解析とアバター生成 ---
	descriptions, avatarPath, err := prepareCharacters(ctx, appCtx, tracker)
	if err != nil {
		return err
	}

	// --- Phase 3: 挿絵の並列生成 ---
	failed, err := runImageStep(ctx, appCtx, tracker, content, descriptions, avatarPath)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		// 欠けたページはPDFでプレースホルダーになる。--retry-failed で拾い直せる。
		slog.Warn("一部の挿絵の生成に失敗したのだ", "pages", failed)
	}

	// --- Phase 4: PDFとプレビューの組み立て ---
	if err := tracker.Set(progress.PhasePDF, "PDFを組版中"); err != nil {
		return err
	}
	pdfPath, err := runPublishStep(ctx, appCtx, content)
	if err != nil {
		return err
	}

	// --- Phase 5: 完成通知メール（任意） ---
	if appCtx.BookConfig.NotificationEmail != "" && !appCtx.Options.SkipMail {
		if err := tracker.Set(progress.PhaseEmail, "完成通知メールを送信中"); err != nil {
			return err
		}
	}
	mailNote := runEmailStep(ctx, appCtx, content, pdfPath)

	message := fmt.Sprintf("絵本が完成したのだ: %s", pdfPath)
	if mailNote != "" {
		message += " / " + mailNote
	}
	if err := tracker.Set(progress.PhaseDone, message); err != nil {
		return err
	}
	slog.Info("パイプラインが完了したのだ", "pdf", pdfPath, "failed_images", len(failed))
	return nil
}

// ExecuteTextOnly は物語JSONの生成だけを行うのだ（--step text 相当）。
func ExecuteTextOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	content, err := builder.BuildStoryRunner(appCtx).Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("物語の生成が完了したのだ", "title", content.Title, "pages", len(content.Pages))
	return nil
}

// ExecuteImagesOnly は生成済みの台本を読み込み、挿絵生成だけを行うのだ。
// 生成済みページはスキップされるため --retry-failed や中断後の再開もこの経路で済む。
func ExecuteImagesOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	tracker := progress.NewTracker(appCtx.Layout.StatusPath())

	content, err := loadContent(ctx, appCtx)
	if err != nil {
		return err
	}

	descriptions, avatarPath, err := prepareCharacters(ctx, appCtx, tracker)
	if err != nil {
		return err
	}

	failed, err := runImageStep(ctx, appCtx, tracker, content, descriptions, avatarPath)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d ページの挿絵生成に失敗したのだ（--retry-failed で再実行できる）: %v", len(failed), failed)
	}
	slog.Info("挿絵の生成が完了したのだ")
	return nil
}

// ExecuteAvatarsOnly は写真解析と水彩アバターの生成だけを行うのだ。
// Web UIのアバター確認フローが挿絵生成の前にこれを呼ぶ。
func ExecuteAvatarsOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	tracker := progress.NewTracker(appCtx.Layout.StatusPath())

	if len(appCtx.BookConfig.PhotoCharacters()) == 0 {
		slog.Info("写真付きキャラクターがいないのでアバターは不要なのだ")
		return nil
	}
	if _, _, err := prepareCharacters(ctx, appCtx, tracker); err != nil {
		if terr := tracker.Fail(err); terr != nil {
			slog.Warn("進捗のエラー記録に失敗したのだ", "error", terr)
		}
		return err
	}
	return tracker.Set(progress.PhaseIdle, "アバターの準備が完了したのだ")
}

// ExecutePDFOnly は生成済みの台本と挿絵からPDFとプレビューを組み立てるのだ。
func ExecutePDFOnly(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	content, err := loadContent(ctx, appCtx)
	if err != nil {
		return err
	}
	pdfPath, err := runPublishStep(ctx, appCtx, content)
	if err != nil {
		return err
	}
	slog.Info("PDFの組み立てが完了したのだ", "path", pdfPath)
	return nil
}

// ExecutePreview はHTMLプレビューだけを書き出すのだ。
func ExecutePreview(ctx context.Context, cfg *config.Config) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	content, err := loadContent(ctx, appCtx)
	if err != nil {
		return err
	}
	previewPath := filepath.Join(appCtx.Layout.FinalDir(), "preview.html")
	if err := publisher.BuildPreview(appCtx.BookConfig, content, "../images", previewPath); err != nil {
		return err
	}
	slog.Info("プレビューを書き出したのだ", "path", previewPath)
	return nil
}

// ExecuteRegenerate は指定ページの挿絵を描き直すのだ。
func ExecuteRegenerate(ctx context.Context, cfg *config.Config, pageID string) error {
	appCtx, err := setupAppContext(ctx, cfg)
	if err != nil {
		return err
	}
	content, err := loadContent(ctx, appCtx)
	if err != nil {
		return err
	}

	tracker := progress.NewTracker(appCtx.Layout.StatusPath())
	descriptions, avatarPath, err := prepareCharacters(ctx, appCtx, tracker)
	if err != nil {
		if terr := tracker.Fail(err); terr != nil {
			slog.Warn("進捗のエラー記録に失敗したのだ", "error", terr)
		}
		return err
	}

	regen, err := builder.BuildRegenerateRunner(appCtx, descriptions, avatarPath)
	if err != nil {
		return err
	}
	if err := regen.Run(ctx, content, domain.PageID(pageID), runner.RegenerateOptions{
		EditPrompt: cfg.Options.EditPrompt,
		Cascade:    cfg.Options.Cascade,
	}); err != nil {
		if terr := tracker.Fail(err); terr != nil {
			slog.Warn("進捗のエラー記録に失敗したのだ", "error", terr)
		}
		return err
	}
	return finishRegenerate(tracker, pageID)
}

// finishRegenerate は再生成の完了を進捗に記録するのだ。
// prepareCharacters が avatars フェーズを書き込むため、これを忘れると
// ポーリング中のUIが進行中表示のまま残ってしまう。
func finishRegenerate(tracker *progress.Tracker, pageID string) error {
	return tracker.Set(progress.PhaseDone, fmt.Sprintf("ページ %s を再生成したのだ", pageID))
}

// setupAppContext は、提供された設定と共有コンポーネントを使用して、
// アプリケーションコンテキストを初期化して返すのだ。
func setupAppContext(ctx context.Context, cfg *config.Config) (*builder.AppContext, error) {
	timeout := cfg.Options.HTTPTimeout
	if timeout <= 0 {
		timeout = config.DefaultHTTPTimeout
	}
	httpClient := httpkit.New(timeout)

	aiClient, err := builder.InitializeAIClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create ai client: %w", err)
	}
	genClient, err := builder.InitializeGenaiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	gcsFactory, err := gcsfactory.NewGCSClientFactory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client factory: %w", err)
	}
	reader, err := gcsFactory.NewInputReader()
	if err != nil {
		return nil, err
	}
	writer, err := gcsFactory.NewOutputWriter()
	if err != nil {
		return nil, err
	}

	configFile := cfg.Options.ConfigFile
	if configFile == "" {
		configFile = config.DefaultConfigFile
	}
	bookCfg, err := domain.LoadBookConfig(configFile)
	if err != nil {
		return nil, err
	}
	baseDir := filepath.Dir(configFile)

	outputDir := cfg.Options.OutputDir
	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}
	layout := artifact.NewLayout(outputDir)
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}

	appCtx := builder.NewAppContext(cfg, bookCfg, baseDir, layout, httpClient, aiClient, genClient, reader, writer)
	return &appCtx, nil
}

// loadContent は book_content.json を読み込むのだ。Reader 経由なので
// gs:// 上の台本もそのまま扱える。
func loadContent(ctx context.Context, appCtx *builder.AppContext) (*domain.BookContent, error) {
	path := appCtx.Layout.ContentPath()
	rc, err := appCtx.Reader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("台本 '%s' の読み込みに失敗したのだ（先に text ステップを実行してほしいのだ）: %w", path, err)
	}
	defer rc.Close()

	var content domain.BookContent
	if err := json.NewDecoder(rc).Decode(&content); err != nil {
		return nil, fmt.Errorf("台本 '%s' のデコードに失敗したのだ: %w", path, err)
	}
	return &content, nil
}

// prepareCharacters は写真の外見説明と水彩アバターを用意するのだ。
func prepareCharacters(ctx context.Context, appCtx *builder.AppContext, tracker *progress.Tracker) (map[string]string, string, error) {
	if len(appCtx.BookConfig.PhotoCharacters()) == 0 {
		return map[string]string{}, "", nil
	}

	if err := tracker.Set(progress.PhaseAvatars, "写真を解析してアバターを生成中"); err != nil {
		return nil, "", err
	}

	store, err := builder.BuildVisionStore(ctx, appCtx)
	if err != nil {
		return nil, "", err
	}
	descriptions, err := store.LoadOrCreate(ctx, appCtx.BookConfig, appCtx.BaseDir)
	if err != nil {
		return nil, "", err
	}

	avatarRunner, err := builder.BuildAvatarRunner(appCtx)
	if err != nil {
		return nil, "", err
	}
	avatars, err := avatarRunner.Run(ctx, descriptions)
	if err != nil {
		return nil, "", err
	}
	return descriptions, runner.PrimaryAvatar(avatars), nil
}

// runImageStep は挿絵の並列生成を実行し、失敗ページ一覧を返すのだ。
func runImageStep(
	ctx context.Context,
	appCtx *builder.AppContext,
	tracker *progress.Tracker,
	content *domain.BookContent,
	descriptions map[string]string,
	avatarPath string,
) ([]domain.PageID, error) {
	imageRunner, err := builder.BuildImageRunner(appCtx, tracker, descriptions, avatarPath)
	if err != nil {
		return nil, fmt.Errorf("ImageRunnerの構築に失敗したのだ: %w", err)
	}
	failed, err := imageRunner.Run(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("挿絵の生成に失敗したのだ: %w", err)
	}
	return failed, nil
}

// runPublishStep はPDFとプレビューを組み立て、PDFのパスを返すのだ。
// PublishDir が指定されていれば Writer 経由で追加書き出しも行う。
func runPublishStep(ctx context.Context, appCtx *builder.AppContext, content *domain.BookContent) (string, error) {
	layout := appCtx.Layout
	pdfPath := layout.PDFPath(appCtx.BookConfig.Child.FirstName, appCtx.BookConfig.Book.Theme)

	fontDir := appCtx.Options.FontDir
	if fontDir == "" {
		fontDir = config.DefaultFontDir
	}
	if err := publisher.BuildPDF(appCtx.BookConfig, content, publisher.BuildOptions{
		ImagesDir:  layout.ImageDir(),
		FontDir:    fontDir,
		OutputPath: pdfPath,
	}); err != nil {
		return "", fmt.Errorf("PDFの組版に失敗したのだ: %w", err)
	}

	previewPath := filepath.Join(layout.FinalDir(), "preview.html")
	if err := publisher.BuildPreview(appCtx.BookConfig, content, "../images", previewPath); err != nil {
		return "", fmt.Errorf("プレビューの生成に失敗したのだ: %w", err)
	}

	if appCtx.Options.PublishDir != "" {
		for _, item := range []struct{ path, mime string }{
			{pdfPath, "application/pdf"},
			{previewPath, "text/html"},
		} {
			if err := publishArtifact(ctx, appCtx, item.path, item.mime); err != nil {
				return "", err
			}
		}
	}
	return pdfPath, nil
}

// publishArtifact はローカルの完成物を PublishDir（gs:// 可）へ書き出すのだ。
func publishArtifact(ctx context.Context, appCtx *builder.AppContext, localPath, mimeType string) error {
	dest, err := urlpath.ResolveOutputPath(appCtx.Options.PublishDir, filepath.Base(localPath))
	if err != nil {
		return fmt.Errorf("書き出し先パスの解決に失敗したのだ: %w", err)
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("完成物の読み込みに失敗したのだ: %w", err)
	}
	if err := appCtx.Writer.Write(ctx, dest, bytes.NewReader(data), mimeType); err != nil {
		return fmt.Errorf("完成物の書き出しに失敗したのだ: %w", err)
	}
	slog.Info("完成物を書き出したのだ", "dest", dest)
	return nil
}

// runEmailStep は完成通知メールを送るのだ。失敗してもパイプラインは止めない。
// 戻り値は完了メッセージに添える補足文。
func runEmailStep(ctx context.Context, appCtx *builder.AppContext, content *domain.BookContent, pdfPath string) string {
	recipient := appCtx.BookConfig.NotificationEmail
	if recipient == "" || appCtx.Options.SkipMail {
		return ""
	}
	sender := mailer.NewSender(appCtx.Config)
	if !sender.Configured() {
		slog.Warn("通知先は指定されているがSMTPが未設定なのだ", "recipient", recipient)
		return "メール未送信（SMTP未設定）"
	}
	if err := sender.SendBook(ctx, pdfPath, content.Title, appCtx.BookConfig.Child.FirstName, recipient); err != nil {
		slog.Error("完成通知メールの送信に失敗したのだ", "error", err)
		return "メール送信に失敗"
	}
	return "メール送信済み"
}
