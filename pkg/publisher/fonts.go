package publisher

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/signintech/gopdf"
)

// Quicksand ファミリーのフォント名です。fonts/ 配下の同名TTFを読み込みます。
const (
	FontRegular = "Quicksand-Regular"
	FontMedium  = "Quicksand-Medium"
	FontBold    = "Quicksand-Bold"
	FontLight   = "Quicksand-Light"
)

var fontFiles = map[string]string{
	FontRegular: "Quicksand-Regular.ttf",
	FontMedium:  "Quicksand-Medium.ttf",
	FontBold:    "Quicksand-Bold.ttf",
	FontLight:   "Quicksand-Light.ttf",
}

// FontSet は読み込みに成功したフォントの集合です。
type FontSet map[string]bool

// registerFonts は fonts/ 配下のTTFをPDFに登録するのだ。
// 見つからないフォントは黙って飛ばし、後段でフォールバックさせる。
func registerFonts(pdf *gopdf.GoPdf, fontDir string) FontSet {
	set := make(FontSet, len(fontFiles))
	for name, file := range fontFiles {
		path := filepath.Join(fontDir, file)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := pdf.AddTTFFont(name, path); err != nil {
			continue
		}
		set[name] = true
	}
	return set
}

// fontForAge は対象年齢に応じた本文フォントとサイズを返すのだ。
// 幼い読者ほど太く大きな文字にする。
func fontForAge(age int) (string, float64) {
	switch {
	case age <= 2:
		return FontBold, 30
	case age == 3:
		return FontMedium, 26
	case age <= 5:
		return FontRegular, 22
	default:
		return FontRegular, 18
	}
}

// Resolve は希望フォントが使えない場合に読み込めた別のウェイトへ倒すのだ。
func (fs FontSet) Resolve(preferred string) (string, error) {
	if fs[preferred] {
		return preferred, nil
	}
	for _, fallback := range []string{FontRegular, FontMedium, FontBold, FontLight} {
		if fs[fallback] {
			return fallback, nil
		}
	}
	return "", fmt.Errorf("利用可能なフォントがないのだ。fonts/ にQuicksandのTTFを置いてほしいのだ")
}
