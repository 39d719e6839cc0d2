package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/internal/config"
	"github.com/shouni/go-ehon-kit/internal/imaging"
	"github.com/shouni/go-ehon-kit/internal/progress"
	"github.com/shouni/go-ehon-kit/internal/prompt"
	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// ImageRunner は、絵本の挿絵一式を生成するためのインターフェースなのだ。
type ImageRunner interface {
	// Run は未生成の挿絵をすべて生成し、失敗したページの一覧を返すのだ。
	Run(ctx context.Context, content *domain.BookContent) ([]domain.PageID, error)
}

// BookImageRunner は、キャラクターの一貫性を保ちながら並列で挿絵生成を行う実体。
type BookImageRunner struct {
	painter      imaging.Painter
	cfg          *config.Config
	bookCfg      *domain.BookConfig
	layout       *artifact.Layout
	tracker      *progress.Tracker
	descriptions map[string]string // キャラクターキー → 外見説明
	avatarPath   string            // 参照アバター画像。空なら参照なし生成
	rateInterval time.Duration
}

// NewBookImageRunner は BookImageRunner の新しいインスタンスを返すのだ。
func NewBookImageRunner(
	painter imaging.Painter,
	cfg *config.Config,
	bookCfg *domain.BookConfig,
	layout *artifact.Layout,
	tracker *progress.Tracker,
	descriptions map[string]string,
	avatarPath string,
) *BookImageRunner {
	interval := cfg.Options.RateLimit
	if interval <= 0 {
		interval = config.DefaultRateLimit
	}
	return &BookImageRunner{
		painter:      painter,
		cfg:          cfg,
		bookCfg:      bookCfg,
		layout:       layout,
		tracker:      tracker,
		descriptions: descriptions,
		avatarPath:   avatarPath,
		rateInterval: interval,
	}
}

// Run は並列処理を用いて、未生成ページの挿絵を生成するメインロジックなのだ。
// 生成済みのページはスキップされるので、中断後の再開にも失敗ページの
// 拾い直し（--retry-failed）にも同じ経路が使える。
func (ir *BookImageRunner) Run(ctx context.Context, content *domain.BookContent) ([]domain.PageID, error) {
	illustrated := content.IllustratedPages()
	missing := ir.missingPages(illustrated)

	if len(missing) == 0 {
		slog.Info("すべての挿絵が生成済みなのだ", "total", len(illustrated))
		slog.Info("描き直したい場合は regenerate コマンドを使うのだ")
		return nil, nil
	}
	if len(missing) < len(illustrated) {
		slog.Info("生成済みの挿絵をスキップして続きから再開するのだ",
			"done", len(illustrated)-len(missing), "remaining", len(missing))
	}

	brief := prompt.BuildCharacterBrief(ir.descriptions, ir.bookCfg)

	var avatar []byte
	if ir.avatarPath != "" {
		data, err := os.ReadFile(ir.avatarPath)
		if err != nil {
			slog.Warn("参照アバターが読めないため参照なしで生成するのだ", "error", err)
		} else {
			avatar = data
			slog.Info("参照アバターを全ページの視覚参照として使うのだ", "path", ir.avatarPath)
		}
	}

	promptLog, err := OpenPromptLog(ir.layout.PromptsLogPath())
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		done   int
		failed []domain.PageID
	)

	eg, egCtx := errgroup.WithContext(ctx)

	// Burst 2 により、開始直後に2枚までは同時にリクエストを開始できるのだ
	limiter := rate.NewLimiter(rate.Every(ir.rateInterval), 2)
	slog.Info("並列挿絵生成を開始するのだ", "count", len(missing), "interval", ir.rateInterval)
	_ = ir.tracker.SetImageProgress(len(illustrated)-len(missing), len(illustrated))

	for _, page := range missing {
		page := page

		eg.Go(func() error {
			if err := limiter.Wait(egCtx); err != nil {
				return err
			}

			enriched := prompt.EnrichPrompt(brief, page.ImagePrompt)
			start := time.Now()
			genErr := ir.paintPage(egCtx, page, enriched, avatar)
			elapsed := time.Since(start)

			promptLog.Append(PromptLogEntry{
				Page:           page.ID,
				Prompt:         enriched,
				OriginalPrompt: page.ImagePrompt,
				Success:        genErr == nil,
				DurationSec:    elapsed.Seconds(),
				UsedReference:  len(avatar) > 0,
			})

			mu.Lock()
			defer mu.Unlock()
			if genErr != nil {
				// 1ページの失敗で全体は止めない。失敗分は後でまとめて報告する。
				slog.Error("挿絵生成に失敗したのだ", "page", page.ID, "error", genErr)
				failed = append(failed, page.ID)
				return nil
			}
			done++
			slog.Info("挿絵が完成したのだ", "page", page.ID, "elapsed", elapsed.Round(time.Second))
			_ = ir.tracker.SetImageProgress(len(illustrated)-len(missing)+done, len(illustrated))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		_ = promptLog.Save()
		return failed, err
	}
	if err := promptLog.Save(); err != nil {
		return failed, err
	}

	slog.Info("挿絵生成の結果なのだ", "success", done, "failed", len(failed), "total", len(missing))
	if len(failed) > 0 {
		slog.Warn("失敗したページがあるのだ。image --retry-failed で拾い直せる", "pages", failed)
	}
	return failed, nil
}

// paintPage は1ページ分の挿絵をリトライ付きで生成して保存するのだ。
func (ir *BookImageRunner) paintPage(ctx context.Context, page domain.Page, enriched string, avatar []byte) error {
	req := ir.buildRequest(page, enriched, avatar)

	var data []byte
	operation := func() error {
		var perr error
		data, perr = ir.painter.Paint(ctx, req)
		return perr
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), config.DefaultMaxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return err
	}

	return ir.writeImage(page.ID, data)
}

// buildRequest は参照アバターの有無とシーン内容から生成要求を組み立てるのだ。
//
// 参照ありでも、キャラクターが登場しない風景・小物ページ（裏表紙など）は
// 参照なしで生成する。参照を使うページでは [PERSONNAGES] セクションを落とし、
// アバター自体をキャラクター設定として扱う。
func (ir *BookImageRunner) buildRequest(page domain.Page, enriched string, avatar []byte) imaging.Request {
	if len(avatar) == 0 {
		return imaging.Request{
			Prompt:         ir.cfg.ImagePromptSuffix + " " + enriched,
			NegativePrompt: ir.cfg.NegativePrompt,
		}
	}

	b := prompt.SplitBrief(enriched)
	if !b.CharacterInScene() || page.ID == domain.CoverBack {
		return imaging.Request{
			Prompt:         ir.cfg.ImagePromptSuffix + " " + b.ScenePrompt,
			NegativePrompt: ir.cfg.NegativePrompt,
		}
	}

	return imaging.Request{
		Prompt:         prompt.BuildReferencePrompt(b, ir.cfg.ImagePromptSuffix),
		NegativePrompt: ir.cfg.NegativePrompt,
		Reference:      avatar,
		ReferenceMime:  "image/png",
	}
}

// writeImage は一時ファイル経由で画像を保存するのだ。途中で落ちても
// 半端なPNGが「生成済み」と誤認されないようにするため。
func (ir *BookImageRunner) writeImage(id domain.PageID, data []byte) error {
	final := ir.layout.ImagePath(id)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("画像の書き込みに失敗したのだ: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("画像の確定に失敗したのだ: %w", err)
	}
	return nil
}

// missingPages は画像ファイルがまだ存在しないページだけを返すのだ。
func (ir *BookImageRunner) missingPages(pages []domain.Page) []domain.Page {
	var missing []domain.Page
	for _, p := range pages {
		if _, err := os.Stat(ir.layout.ImagePath(p.ID)); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}
