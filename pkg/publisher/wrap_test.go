package publisher

import (
	"reflect"
	"testing"
	"unicode/utf8"
)

// runeMeasurer は1文字=10ptの固定幅フェイクです。
func runeMeasurer(text string) (float64, error) {
	return float64(utf8.RuneCountInString(text)) * 10, nil
}

func TestWrapText(t *testing.T) {
	t.Run("行幅に収まるよう単語単位で折り返されること", func(t *testing.T) {
		// 最大12文字分 = 120pt
		lines, err := wrapText("Liam ouvre la grande porte bleue", runeMeasurer, 120)
		if err != nil {
			t.Fatal(err)
		}
		expected := []string{"Liam ouvre", "la grande", "porte bleue"}
		if !reflect.DeepEqual(lines, expected) {
			t.Errorf("期待値 %v, 実際の値 %v", expected, lines)
		}
	})

	t.Run("改行は段落区切りとして残ること", func(t *testing.T) {
		lines, err := wrapText("Pour Emma,\n\navec tout notre amour", runeMeasurer, 300)
		if err != nil {
			t.Fatal(err)
		}
		expected := []string{"Pour Emma,", "", "avec tout notre amour"}
		if !reflect.DeepEqual(lines, expected) {
			t.Errorf("期待値 %v, 実際の値 %v", expected, lines)
		}
	})

	t.Run("1単語が行幅を超えてもそのまま1行になること", func(t *testing.T) {
		lines, err := wrapText("anticonstitutionnellement oui", runeMeasurer, 100)
		if err != nil {
			t.Fatal(err)
		}
		expected := []string{"anticonstitutionnellement", "oui"}
		if !reflect.DeepEqual(lines, expected) {
			t.Errorf("期待値 %v, 実際の値 %v", expected, lines)
		}
	})
}

func TestFontForAge(t *testing.T) {
	cases := []struct {
		age          int
		expectedFont string
		expectedSize float64
	}{
		{1, FontBold, 30},
		{2, FontBold, 30},
		{3, FontMedium, 26},
		{4, FontRegular, 22},
		{5, FontRegular, 22},
		{6, FontRegular, 18},
		{8, FontRegular, 18},
	}
	for _, tc := range cases {
		font, size := fontForAge(tc.age)
		if font != tc.expectedFont || size != tc.expectedSize {
			t.Errorf("%d歳: 期待値 %s/%v, 実際の値 %s/%v", tc.age, tc.expectedFont, tc.expectedSize, font, size)
		}
	}
}

func TestFontSet_Resolve(t *testing.T) {
	t.Run("希望フォントがあればそのまま使うこと", func(t *testing.T) {
		fs := FontSet{FontBold: true, FontRegular: true}
		got, err := fs.Resolve(FontBold)
		if err != nil || got != FontBold {
			t.Errorf("期待値 %s, 実際の値 %s (%v)", FontBold, got, err)
		}
	})

	t.Run("希望フォントがなければ別のウェイトに倒れること", func(t *testing.T) {
		fs := FontSet{FontRegular: true}
		got, err := fs.Resolve(FontBold)
		if err != nil || got != FontRegular {
			t.Errorf("期待値 %s, 実際の値 %s (%v)", FontRegular, got, err)
		}
	})

	t.Run("何も読み込めていなければエラーになること", func(t *testing.T) {
		if _, err := FontSet{}.Resolve(FontBold); err == nil {
			t.Error("エラーが発生しませんでした")
		}
	})
}

func TestHexToRGB(t *testing.T) {
	cases := []struct {
		hex     string
		r, g, b uint8
	}{
		{"#FFF8F0", 0xFF, 0xF8, 0xF0},
		{"#000000", 0, 0, 0},
		{"#abc", 0xAA, 0xBB, 0xCC},
		{"pas une couleur", 0xFF, 0xFF, 0xFF},
	}
	for _, tc := range cases {
		r, g, b := hexToRGB(tc.hex)
		if r != tc.r || g != tc.g || b != tc.b {
			t.Errorf("%q: 期待値 (%d,%d,%d), 実際の値 (%d,%d,%d)", tc.hex, tc.r, tc.g, tc.b, r, g, b)
		}
	}
}
