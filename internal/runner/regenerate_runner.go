package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/internal/config"
	"github.com/shouni/go-ehon-kit/internal/imaging"
	"github.com/shouni/go-ehon-kit/internal/prompt"
	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// RegenerateOptions は再生成の挙動を制御するのだ。
type RegenerateOptions struct {
	EditPrompt bool // 再生成前にプロンプトを対話編集する
	Cascade    bool // 表紙の再生成後、残り全ページへ波及させる
}

// RegenerateRunner は挿絵1枚の描き直しを担当するのだ。
// 既存画像は images_backup/ に版付きで退避し、失敗時は自動復元する。
type RegenerateRunner struct {
	painter      imaging.Painter
	cfg          *config.Config
	bookCfg      *domain.BookConfig
	layout       *artifact.Layout
	descriptions map[string]string
	avatarPath   string

	// 対話入出力。テストでは差し替える。
	In  io.Reader
	Out io.Writer
}

// NewRegenerateRunner は RegenerateRunner の新しいインスタンスを返すのだ。
func NewRegenerateRunner(
	painter imaging.Painter,
	cfg *config.Config,
	bookCfg *domain.BookConfig,
	layout *artifact.Layout,
	descriptions map[string]string,
	avatarPath string,
) *RegenerateRunner {
	return &RegenerateRunner{
		painter:      painter,
		cfg:          cfg,
		bookCfg:      bookCfg,
		layout:       layout,
		descriptions: descriptions,
		avatarPath:   avatarPath,
		In:           os.Stdin,
		Out:          os.Stdout,
	}
}

// Run は指定ページを描き直すのだ。
func (rr *RegenerateRunner) Run(ctx context.Context, content *domain.BookContent, id domain.PageID, opts RegenerateOptions) error {
	page := content.FindPage(id)
	if page == nil {
		return fmt.Errorf("ページ '%s' は book_content.json に存在しないのだ", id)
	}
	if !page.IsIllustrated() {
		return fmt.Errorf("ページ %s は挿絵ページではないのだ（type=%s）", id, page.Type)
	}

	imagePrompt := page.ImagePrompt
	if opts.EditPrompt {
		edited, err := rr.promptForEdit(id, imagePrompt)
		if err != nil {
			return err
		}
		if edited != "" {
			imagePrompt = edited
			slog.Info("プロンプトを更新したのだ")
		}
	}

	backupPath, err := rr.layout.BackupImage(id)
	if err != nil {
		return err
	}
	if backupPath != "" {
		slog.Info("既存の挿絵を退避したのだ", "backup", backupPath)
	}

	if err := rr.paintOne(ctx, *page, imagePrompt, true); err != nil {
		// 失敗したら退避版を書き戻して元の状態に保つ
		if backupPath != "" {
			if rerr := rr.layout.RestoreImage(id, backupPath); rerr == nil {
				slog.Info("直前の挿絵を復元したのだ", "page", id)
			}
		}
		return fmt.Errorf("ページ %s の再生成に失敗したのだ: %w", id, err)
	}

	slog.Info("再生成が完了したのだ。pdf コマンドで本を組み直すのだ", "page", id)

	if opts.Cascade && id == domain.CoverFront {
		return rr.cascade(ctx, content)
	}
	return nil
}

// cascade は新しい表紙のスタイルに合わせて残り全ページを描き直すのだ。
// 全ページのAPI呼び出しが走るため、実行前に端末で確認を取る。
func (rr *RegenerateRunner) cascade(ctx context.Context, content *domain.BookContent) error {
	fmt.Fprintln(rr.Out, "表紙が変わったのだ。")
	fmt.Fprint(rr.Out, "残りの挿絵もこの新しいスタイルで描き直す？ (o/n) : ")

	answer, err := bufio.NewReader(rr.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return fmt.Errorf("確認入力の読み取りに失敗したのだ: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "o", "oui", "y", "yes":
	default:
		slog.Info("波及再生成はキャンセルされたのだ")
		return nil
	}

	var others []domain.Page
	for _, p := range content.IllustratedPages() {
		if p.ID != domain.CoverFront {
			others = append(others, p)
		}
	}

	slog.Info("波及再生成を開始するのだ", "count", len(others))
	interval := rr.cfg.Options.RateLimit
	if interval <= 0 {
		interval = config.DefaultRateLimit
	}

	for i, p := range others {
		if _, err := rr.layout.BackupImage(p.ID); err != nil {
			return err
		}
		if err := rr.paintOne(ctx, p, p.ImagePrompt, false); err != nil {
			slog.Error("波及再生成に失敗したのだ", "page", p.ID, "error", err)
			continue
		}
		slog.Info("描き直したのだ", "page", p.ID, "progress", fmt.Sprintf("%d/%d", i+1, len(others)))

		if i < len(others)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	slog.Info("波及再生成が完了したのだ。pdf コマンドで本を組み直すのだ")
	return nil
}

// paintOne は1ページ分を生成・保存してログに記録するのだ。
func (rr *RegenerateRunner) paintOne(ctx context.Context, page domain.Page, imagePrompt string, logRegen bool) error {
	brief := prompt.BuildCharacterBrief(rr.descriptions, rr.bookCfg)
	enriched := prompt.EnrichPrompt(brief, imagePrompt)

	var avatar []byte
	if rr.avatarPath != "" {
		if data, err := os.ReadFile(rr.avatarPath); err == nil {
			avatar = data
		}
	}

	req := rr.buildRequest(page, enriched, avatar)
	start := time.Now()
	data, err := rr.painter.Paint(ctx, req)
	elapsed := time.Since(start)

	if promptLog, lerr := OpenPromptLog(rr.layout.PromptsLogPath()); lerr == nil {
		promptLog.Append(PromptLogEntry{
			Page:           page.ID,
			Prompt:         enriched,
			OriginalPrompt: imagePrompt,
			Success:        err == nil,
			DurationSec:    elapsed.Seconds(),
			UsedReference:  len(avatar) > 0,
			Retry:          logRegen,
		})
		_ = promptLog.Save()
	}
	if err != nil {
		return err
	}

	if werr := os.WriteFile(rr.layout.ImagePath(page.ID), data, 0o644); werr != nil {
		return fmt.Errorf("画像の保存に失敗したのだ: %w", werr)
	}
	return nil
}

// buildRequest は BookImageRunner と同じ規則で生成要求を組み立てるのだ。
func (rr *RegenerateRunner) buildRequest(page domain.Page, enriched string, avatar []byte) imaging.Request {
	if len(avatar) == 0 {
		return imaging.Request{
			Prompt:         rr.cfg.ImagePromptSuffix + " " + enriched,
			NegativePrompt: rr.cfg.NegativePrompt,
		}
	}
	b := prompt.SplitBrief(enriched)
	if !b.CharacterInScene() || page.ID == domain.CoverBack {
		return imaging.Request{
			Prompt:         rr.cfg.ImagePromptSuffix + " " + b.ScenePrompt,
			NegativePrompt: rr.cfg.NegativePrompt,
		}
	}
	return imaging.Request{
		Prompt:         prompt.BuildReferencePrompt(b, rr.cfg.ImagePromptSuffix),
		NegativePrompt: rr.cfg.NegativePrompt,
		Reference:      avatar,
		ReferenceMime:  "image/png",
	}
}

// promptForEdit は現在のプロンプトを見せて編集入力を受け取るのだ。
// 空入力なら変更なしを意味する。
func (rr *RegenerateRunner) promptForEdit(id domain.PageID, current string) (string, error) {
	// プロンプトはアクセント付きのフランス語なので、バイトではなく
	// ルーン単位で切り詰める
	preview := current
	if runes := []rune(preview); len(runes) > 500 {
		preview = string(runes[:500]) + "..."
	}
	fmt.Fprintf(rr.Out, "\nページ %s の現在のプロンプト:\n", id)
	fmt.Fprintln(rr.Out, strings.Repeat("-", 40))
	fmt.Fprintln(rr.Out, preview)
	fmt.Fprintln(rr.Out, strings.Repeat("-", 40))
	fmt.Fprintln(rr.Out, "修正内容（または新しいプロンプト全文）を入力するのだ。空行なら変更なし:")
	fmt.Fprint(rr.Out, "> ")

	line, err := bufio.NewReader(rr.In).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("プロンプト入力の読み取りに失敗したのだ: %w", err)
	}
	return strings.TrimSpace(line), nil
}
