// Package publisher は生成済みの物語と挿絵から最終成果物（PDFとHTML
// プレビュー）を組み立てるパッケージです。
package publisher

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/signintech/gopdf"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// 判型は 21cm x 21cm の正方形で固定です。gopdf はポイント単位で扱います。
const (
	cmPt     = 28.3465
	PageSize = 21 * cmPt
	margin   = 2 * cmPt
)

// BuildOptions はPDF組版の入力パスをまとめたものです。
type BuildOptions struct {
	ImagesDir  string // 挿絵PNGの置き場所
	FontDir    string // QuicksandのTTFの置き場所
	OutputPath string // 書き出すPDFのパス
}

// questionsHeadings は巻末ページの見出しの言語別マップなのだ。
var questionsHeadings = map[string]string{
	"fr": "Parlons ensemble !",
	"en": "Let's talk together!",
	"es": "¡Hablemos juntos!",
	"de": "Lass uns reden!",
}

// pdfBuilder は組版中の状態をまとめた内部構造体なのだ。
type pdfBuilder struct {
	pdf      *gopdf.GoPdf
	fonts    FontSet
	fontName string
	fontSize float64
	bgHex    string
	measure  Measurer
}

// BuildPDF は絵本一冊分のPDFを組み立てて検証するのだ。
// ページ構成: 表紙 → 献辞 → 本文(3〜29) → 問いかけ → 裏表紙。
func BuildPDF(cfg *domain.BookConfig, content *domain.BookContent, opts BuildOptions) error {
	pdf := &gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: gopdf.Rect{W: PageSize, H: PageSize}})
	pdf.SetInfo(gopdf.PdfInfo{
		Title:  content.Title,
		Author: fmt.Sprintf("Livre personnalisé pour %s", cfg.Child.FirstName),
	})

	fonts := registerFonts(pdf, opts.FontDir)
	preferred, size := fontForAge(cfg.Child.Age)
	fontName, err := fonts.Resolve(preferred)
	if err != nil {
		return err
	}
	if err := pdf.SetFont(fontName, "", size); err != nil {
		return fmt.Errorf("フォントの設定に失敗したのだ: %w", err)
	}
	slog.Info("本文フォントを選択したのだ", "font", fontName, "size", size, "age", cfg.Child.Age)

	b := &pdfBuilder{
		pdf:      pdf,
		fonts:    fonts,
		fontName: fontName,
		fontSize: size,
		bgHex:    content.ColorPalette.TextBackgroundHex(),
		measure:  pdf.MeasureTextWidth,
	}

	// 表紙
	b.pdf.AddPage()
	b.drawImagePage(filepath.Join(opts.ImagesDir, domain.CoverFront.Filename()))

	// 献辞（ページ2）
	b.pdf.AddPage()
	if err := b.drawDedication(cfg.Book.Dedication); err != nil {
		return err
	}

	// 本文ページ 3〜29
	for n := 3; n <= 29; n++ {
		page := content.FindPage(domain.PageID(strconv.Itoa(n)))
		if page == nil {
			continue
		}
		b.pdf.AddPage()
		switch page.Type {
		case domain.PageTypeImage:
			b.drawImagePage(filepath.Join(opts.ImagesDir, page.ID.Filename()))
		case domain.PageTypeText:
			if err := b.drawTextPage(page.Text); err != nil {
				return err
			}
		}
	}

	// 問いかけページ
	if cfg.Options.IncludeQuestionsPage {
		if q := content.FindPage(domain.PageID("30")); q != nil && len(q.Questions) > 0 {
			b.pdf.AddPage()
			if err := b.drawQuestions(q.Questions, cfg.Book.Language); err != nil {
				return err
			}
		}
	}

	// 裏表紙
	backText := ""
	if back := content.FindPage(domain.CoverBack); back != nil {
		backText = back.BackCoverText
	}
	b.pdf.AddPage()
	if err := b.drawBackCover(filepath.Join(opts.ImagesDir, domain.CoverBack.Filename()), backText); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(opts.OutputPath), 0o755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗したのだ: %w", err)
	}
	if err := pdf.WritePdf(opts.OutputPath); err != nil {
		return fmt.Errorf("PDFの書き出しに失敗したのだ: %w", err)
	}

	// 組版結果の構造検証。印刷所に渡す前に壊れたPDFを弾く。
	if err := api.ValidateFile(opts.OutputPath, nil); err != nil {
		return fmt.Errorf("生成したPDFの検証に失敗したのだ: %w", err)
	}

	slog.Info("PDFが完成したのだ", "path", opts.OutputPath, "format", "21cm x 21cm")
	return nil
}

// drawImagePage は挿絵を全面に敷くのだ。画像が無ければ欠落表示を置く。
func (b *pdfBuilder) drawImagePage(imagePath string) {
	if _, err := os.Stat(imagePath); err == nil {
		if ierr := b.pdf.Image(imagePath, 0, 0, &gopdf.Rect{W: PageSize, H: PageSize}); ierr == nil {
			return
		}
	}
	b.pdf.SetTextColor(0x99, 0x99, 0x99)
	text := fmt.Sprintf("[Image manquante : %s]", filepath.Base(imagePath))
	b.drawCenteredLine(text, PageSize/2)
	b.pdf.SetTextColor(0x2D, 0x2D, 0x2D)
}

// drawTextPage は配色パレットの背景に本文を中央配置するのだ。
func (b *pdfBuilder) drawTextPage(text string) error {
	b.fillBackground(b.bgHex)
	b.pdf.SetTextColor(0x2D, 0x2D, 0x2D)

	lines, err := wrapText(text, b.measure, PageSize-2*margin)
	if err != nil {
		return fmt.Errorf("本文の折り返しに失敗したのだ: %w", err)
	}
	b.drawCenteredBlock(lines, b.fontSize*1.5)
	return nil
}

// drawDedication は献辞を軽いウェイトで控えめに置くのだ。空なら背景のみ。
func (b *pdfBuilder) drawDedication(dedication string) error {
	b.fillBackground(b.bgHex)
	if dedication == "" {
		return nil
	}

	name := b.fontName
	if resolved, err := b.fonts.Resolve(FontLight); err == nil {
		name = resolved
	}
	size := b.fontSize - 4
	if size < 14 {
		size = 14
	}
	if err := b.pdf.SetFont(name, "", size); err != nil {
		return fmt.Errorf("献辞フォントの設定に失敗したのだ: %w", err)
	}
	defer b.resetFont()

	b.pdf.SetTextColor(0x55, 0x55, 0x55)
	lines, err := wrapText(dedication, b.measure, PageSize-2*margin)
	if err != nil {
		return err
	}
	b.drawCenteredBlock(lines, size*1.6)
	return nil
}

// drawQuestions は巻末の問いかけページを組むのだ。
func (b *pdfBuilder) drawQuestions(questions []string, language string) error {
	b.fillBackground(b.bgHex)

	heading, ok := questionsHeadings[language]
	if !ok {
		heading = questionsHeadings["fr"]
	}

	if err := b.pdf.SetFont(b.fontName, "", b.fontSize+6); err != nil {
		return err
	}
	b.pdf.SetTextColor(0xE8, 0x72, 0x5C)
	b.drawCenteredLine(heading, 3*cmPt)

	qSize := b.fontSize - 2
	if qSize < 14 {
		qSize = 14
	}
	if err := b.pdf.SetFont(b.fontName, "", qSize); err != nil {
		return err
	}
	defer b.resetFont()
	b.pdf.SetTextColor(0x2D, 0x2D, 0x2D)

	y := 5 * cmPt
	for i, q := range questions {
		lines, err := wrapText(fmt.Sprintf("%d. %s", i+1, q), b.measure, PageSize-2*margin)
		if err != nil {
			return err
		}
		for _, line := range lines {
			b.pdf.SetXY(margin, y)
			if err := b.pdf.Cell(nil, line); err != nil {
				return err
			}
			y += qSize * 1.4
		}
		y += qSize
	}
	return nil
}

// drawBackCover は裏表紙の画像の上に半透明の帯と紹介文を重ねるのだ。
func (b *pdfBuilder) drawBackCover(imagePath, backText string) error {
	b.drawImagePage(imagePath)
	if backText == "" {
		return nil
	}

	// 下部6cmに半透明の黒帯を敷いて白文字を載せる
	bandHeight := 6 * cmPt
	if err := b.pdf.SetTransparency(gopdf.Transparency{Alpha: 0.2, BlendModeType: gopdf.NormalBlendMode}); err == nil {
		b.pdf.SetFillColor(0, 0, 0)
		b.pdf.RectFromUpperLeftWithStyle(0, PageSize-bandHeight, PageSize, bandHeight, "F")
		b.pdf.ClearTransparency()
	}

	size := b.fontSize - 2
	if size < 13 {
		size = 13
	}
	if err := b.pdf.SetFont(b.fontName, "", size); err != nil {
		return err
	}
	defer b.resetFont()
	b.pdf.SetTextColor(0xFF, 0xFF, 0xFF)

	lines, err := wrapText(backText, b.measure, PageSize-2*margin)
	if err != nil {
		return err
	}
	lineHeight := size * 1.4
	total := float64(len(lines)) * lineHeight
	y := PageSize - bandHeight + (bandHeight-total)/2
	for _, line := range lines {
		b.drawCenteredLine(line, y)
		y += lineHeight
	}
	return nil
}

// fillBackground は全面を指定色で塗るのだ。
func (b *pdfBuilder) fillBackground(hex string) {
	r, g, bl := hexToRGB(hex)
	b.pdf.SetFillColor(r, g, bl)
	b.pdf.RectFromUpperLeftWithStyle(0, 0, PageSize, PageSize, "F")
}

// drawCenteredBlock は行ブロックを縦横中央に置くのだ。
func (b *pdfBuilder) drawCenteredBlock(lines []string, lineHeight float64) {
	total := float64(len(lines)) * lineHeight
	y := (PageSize - total) / 2
	for _, line := range lines {
		b.drawCenteredLine(line, y)
		y += lineHeight
	}
}

// drawCenteredLine は1行を水平中央に置くのだ。
func (b *pdfBuilder) drawCenteredLine(line string, y float64) {
	w, err := b.measure(line)
	if err != nil {
		w = 0
	}
	b.pdf.SetXY((PageSize-w)/2, y)
	_ = b.pdf.Cell(nil, line)
}

func (b *pdfBuilder) resetFont() {
	_ = b.pdf.SetFont(b.fontName, "", b.fontSize)
}

// hexToRGB は "#RRGGBB" / "#RGB" をRGB値に変換するのだ。壊れた値は白に倒す。
func hexToRGB(hex string) (uint8, uint8, uint8) {
	if len(hex) == 4 && hex[0] == '#' {
		hex = fmt.Sprintf("#%c%c%c%c%c%c", hex[1], hex[1], hex[2], hex[2], hex[3], hex[3])
	}
	if len(hex) != 7 || hex[0] != '#' {
		return 0xFF, 0xFF, 0xFF
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 0xFF, 0xFF, 0xFF
	}
	return uint8(v >> 16), uint8(v >> 8), uint8(v)
}
