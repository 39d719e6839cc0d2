package publisher

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

func previewFixtures() (*domain.BookConfig, *domain.BookContent) {
	cfg := &domain.BookConfig{
		Book: domain.Book{
			Theme:            "La mer",
			EducationalValue: "Le partage",
			Language:         "fr",
			Dedication:       "Pour Emma, avec amour.",
		},
		Child:   domain.Child{FirstName: "Emma", Age: 4},
		Options: domain.BookOptions{IncludeQuestionsPage: true, NumberOfQuestions: 2},
	}
	content := &domain.BookContent{
		Title: "Emma et la mer",
		ColorPalette: domain.ColorPalette{
			TextPageBackground: "#FDF6EC — crème",
		},
		Pages: []domain.Page{
			{ID: domain.CoverFront, Type: domain.PageTypeImage, ImagePrompt: "cover"},
			{ID: domain.CoverBack, Type: domain.PageTypeImageAndText, ImagePrompt: "back", BackCoverText: "Une aventure salée."},
			{ID: domain.PageID("2"), Type: domain.PageTypeDedication},
			{ID: domain.PageID("3"), Type: domain.PageTypeImage, ImagePrompt: "intro"},
			{ID: domain.PageID("4"), Type: domain.PageTypeText, Text: "Emma regarde les vagues."},
			{ID: domain.PageID("30"), Type: domain.PageTypeQuestions, Questions: []string{"Q1 ?", "Q2 ?"}},
		},
	}
	return cfg, content
}

func TestBuildPreview(t *testing.T) {
	cfg, content := previewFixtures()
	outputPath := filepath.Join(t.TempDir(), "preview.html")

	if err := BuildPreview(cfg, content, "../images", outputPath); err != nil {
		t.Fatalf("プレビュー生成に失敗したのだ: %v", err)
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)

	for _, want := range []string{
		"Emma et la mer",
		"../images/cover_front.png",
		"../images/page_03.png",
		"Emma regarde les vagues.",
		"Pour Emma, avec amour.",
		"Parlons ensemble !",
		"Une aventure salée.",
		"#FDF6EC",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("%q がプレビューに含まれていないのだ", want)
		}
	}
}

func TestBuildPreview_SpreadPairing(t *testing.T) {
	cfg, content := previewFixtures()
	// 5〜29を埋めて見開きの組を確認する
	for n := 5; n <= 29; n++ {
		p := domain.Page{ID: domain.PageID(strconv.Itoa(n))}
		if n%2 == 0 {
			p.Type = domain.PageTypeText
			p.Text = "texte " + strconv.Itoa(n)
		} else {
			p.Type = domain.PageTypeImage
			p.ImagePrompt = "scène"
		}
		content.Pages = append(content.Pages, p)
	}

	outputPath := filepath.Join(t.TempDir(), "preview.html")
	if err := BuildPreview(cfg, content, "../images", outputPath); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatal(err)
	}

	// 見開きは 3-4, 5-6, ..., 29 の14組
	if got := strings.Count(string(data), `<div class="spread">`); got != 14 {
		t.Errorf("見開きは14組のはずなのだ: %d", got)
	}
}
