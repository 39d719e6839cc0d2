package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/internal/config"
	"github.com/shouni/go-ehon-kit/internal/imaging"
	"github.com/shouni/go-ehon-kit/internal/progress"
	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// fakePainter は呼ばれた要求を記録し、指定ページだけ失敗するのだ。
type fakePainter struct {
	mu       sync.Mutex
	requests []imaging.Request
	failOn   map[string]bool
}

func (f *fakePainter) Paint(_ context.Context, req imaging.Request) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	for marker := range f.failOn {
		if strings.Contains(req.Prompt, marker) {
			return nil, errors.New("生成エラー")
		}
	}
	return []byte("png"), nil
}

func testContent() *domain.BookContent {
	return &domain.BookContent{
		Title: "Liam et la mer",
		Pages: []domain.Page{
			{ID: domain.CoverFront, Type: domain.PageTypeImage, ImagePrompt: "scene-cover Liam sur la plage"},
			{ID: domain.CoverBack, Type: domain.PageTypeImageAndText, ImagePrompt: "scene-back fond bleu uni", BackCoverText: "accroche"},
			{ID: domain.PageID("3"), Type: domain.PageTypeImage, ImagePrompt: "scene-3 Liam construit un château"},
			{ID: domain.PageID("4"), Type: domain.PageTypeText, Text: "texte"},
			{ID: domain.PageID("5"), Type: domain.PageTypeImage, ImagePrompt: "scene-5 Liam nage"},
		},
	}
}

func newTestImageRunner(t *testing.T, painter imaging.Painter, avatarPath string) (*BookImageRunner, *artifact.Layout) {
	t.Helper()
	layout := artifact.NewLayout(t.TempDir())
	if err := layout.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	cfg := config.LoadConfig()
	cfg.Options.RateLimit = time.Millisecond
	bookCfg := &domain.BookConfig{
		Book:  domain.Book{Theme: "La mer", EducationalValue: "Le partage"},
		Child: domain.Child{FirstName: "Liam", Age: 5},
	}
	tracker := progress.NewTracker(layout.StatusPath())
	return NewBookImageRunner(painter, cfg, bookCfg, layout, tracker, nil, avatarPath), layout
}

func TestBookImageRunner_Run(t *testing.T) {
	t.Run("未生成ページだけが生成されること", func(t *testing.T) {
		painter := &fakePainter{}
		runner, layout := newTestImageRunner(t, painter, "")
		content := testContent()

		// ページ3は生成済みの想定
		if err := os.WriteFile(layout.ImagePath(domain.PageID("3")), []byte("done"), 0o644); err != nil {
			t.Fatal(err)
		}

		failed, err := runner.Run(context.Background(), content)
		if err != nil {
			t.Fatal(err)
		}
		if len(failed) != 0 {
			t.Errorf("失敗ページは無いはずなのだ: %v", failed)
		}
		if len(painter.requests) != 3 {
			t.Errorf("生成呼び出しは3回のはずなのだ: %d", len(painter.requests))
		}
		for _, id := range []domain.PageID{domain.CoverFront, domain.CoverBack, domain.PageID("5")} {
			if _, err := os.Stat(layout.ImagePath(id)); err != nil {
				t.Errorf("画像 %s が保存されていないのだ", id)
			}
		}
	})

	t.Run("失敗ページが報告されて他は続行されること", func(t *testing.T) {
		painter := &fakePainter{failOn: map[string]bool{"scene-5": true}}
		runner, layout := newTestImageRunner(t, painter, "")
		content := testContent()

		failed, err := runner.Run(context.Background(), content)
		if err != nil {
			t.Fatal(err)
		}
		if len(failed) != 1 || failed[0] != domain.PageID("5") {
			t.Errorf("ページ5が失敗として報告されるはずなのだ: %v", failed)
		}
		// 他のページは保存されていること
		if _, err := os.Stat(layout.ImagePath(domain.CoverFront)); err != nil {
			t.Error("表紙が保存されていないのだ")
		}
		// プロンプトログに失敗も記録されていること
		pl, err := OpenPromptLog(layout.PromptsLogPath())
		if err != nil {
			t.Fatal(err)
		}
		if pl.Len() != 3 {
			t.Errorf("ログは3件のはずなのだ: %d", pl.Len())
		}
	})

	t.Run("全ページ生成済みなら何も呼ばれないこと", func(t *testing.T) {
		painter := &fakePainter{}
		runner, layout := newTestImageRunner(t, painter, "")
		content := testContent()
		for _, p := range content.IllustratedPages() {
			if err := os.WriteFile(layout.ImagePath(p.ID), []byte("done"), 0o644); err != nil {
				t.Fatal(err)
			}
		}

		if _, err := runner.Run(context.Background(), content); err != nil {
			t.Fatal(err)
		}
		if len(painter.requests) != 0 {
			t.Errorf("生成は呼ばれないはずなのだ: %d回", len(painter.requests))
		}
	})
}

func TestBookImageRunner_Reference(t *testing.T) {
	avatarPath := filepath.Join(t.TempDir(), "avatar_child.png")
	if err := os.WriteFile(avatarPath, []byte("avatar-png"), 0o644); err != nil {
		t.Fatal(err)
	}

	painter := &fakePainter{}
	runner, _ := newTestImageRunner(t, painter, avatarPath)
	runner.descriptions = map[string]string{"child": "Liam has short brown hair."}

	content := &domain.BookContent{
		Title: "ref",
		Pages: []domain.Page{
			// 主人公が登場するシーン → 参照あり
			{ID: domain.PageID("3"), Type: domain.PageTypeImage, ImagePrompt: "[SCÈNE]\nLiam court sur la plage."},
			// 人物の出ない裏表紙 → 参照なし
			{ID: domain.CoverBack, Type: domain.PageTypeImageAndText, ImagePrompt: "fond bleu uni, texture aquarelle"},
		},
	}

	if _, err := runner.Run(context.Background(), content); err != nil {
		t.Fatal(err)
	}

	var withRef, withoutRef int
	for _, req := range painter.requests {
		if len(req.Reference) > 0 {
			withRef++
			if !strings.Contains(req.Prompt, "CRITICAL: keep exactly the same character") {
				t.Error("参照付き要求に変換指示がないのだ")
			}
		} else {
			withoutRef++
		}
	}
	if withRef != 1 || withoutRef != 1 {
		t.Errorf("参照あり1件・参照なし1件のはずなのだ: ref=%d noref=%d", withRef, withoutRef)
	}
}
