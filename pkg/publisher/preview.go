package publisher

import (
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"strconv"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

//go:embed preview.tmpl.html
var previewTemplate string

var previewTmpl = template.Must(template.New("preview").Parse(previewTemplate))

// previewPane は見開きの片側1ページ分の表示データです。
type previewPane struct {
	Number    int
	IsImage   bool
	ImageFile string
	Text      string
}

// previewSpread は見開き（左右2ページ）です。
type previewSpread struct {
	Panes []previewPane
}

// previewData はテンプレートに渡す表示データ一式です。
type previewData struct {
	Title            string
	Dedication       string
	Background       template.CSS
	ImagesRel        string
	Spreads          []previewSpread
	Questions        []string
	QuestionsHeading string
	BackText         string
}

// BuildPreview は印刷前確認用のHTMLプレビューを書き出すのだ。
// 本文ページ3〜29を実物と同じ見開き単位で並べる。
func BuildPreview(cfg *domain.BookConfig, content *domain.BookContent, imagesRel, outputPath string) error {
	data := previewData{
		Title:      content.Title,
		Dedication: cfg.Book.Dedication,
		Background: template.CSS(content.ColorPalette.TextBackgroundHex()),
		ImagesRel:  imagesRel,
	}

	for n := 3; n <= 29; n += 2 {
		var spread previewSpread
		for _, num := range []int{n, n + 1} {
			page := content.FindPage(domain.PageID(strconv.Itoa(num)))
			if page == nil {
				continue
			}
			switch page.Type {
			case domain.PageTypeImage:
				spread.Panes = append(spread.Panes, previewPane{
					Number:    num,
					IsImage:   true,
					ImageFile: page.ID.Filename(),
				})
			case domain.PageTypeText:
				spread.Panes = append(spread.Panes, previewPane{Number: num, Text: page.Text})
			}
		}
		if len(spread.Panes) > 0 {
			data.Spreads = append(data.Spreads, spread)
		}
	}

	if cfg.Options.IncludeQuestionsPage {
		if q := content.FindPage(domain.PageID("30")); q != nil && len(q.Questions) > 0 {
			data.Questions = q.Questions
			heading, ok := questionsHeadings[cfg.Book.Language]
			if !ok {
				heading = questionsHeadings["fr"]
			}
			data.QuestionsHeading = heading
		}
	}

	if back := content.FindPage(domain.CoverBack); back != nil {
		data.BackText = back.BackCoverText
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("プレビューファイルの作成に失敗したのだ: %w", err)
	}
	defer f.Close()

	if err := previewTmpl.Execute(f, data); err != nil {
		return fmt.Errorf("プレビューの生成に失敗したのだ: %w", err)
	}
	return nil
}
