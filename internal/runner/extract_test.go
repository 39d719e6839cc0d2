package runner

import (
	"testing"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

func TestExtractBookContent(t *testing.T) {
	t.Run("前後に余計なテキストがあっても抽出できること", func(t *testing.T) {
		raw := "Voici le livre demandé :\n```json\n" +
			`{"title": "Liam et la mer", "pages": [{"page": "cover_front", "type": "image", "image_prompt": "p"}]}` +
			"\n```\nBonne lecture !"

		content, err := ExtractBookContent(raw)
		if err != nil {
			t.Fatalf("抽出失敗なのだ: %v", err)
		}
		if content.Title != "Liam et la mer" {
			t.Errorf("タイトルが違うのだ: %s", content.Title)
		}
		if len(content.Pages) != 1 || content.Pages[0].ID != domain.CoverFront {
			t.Errorf("ページの抽出が正しくないのだ: %+v", content.Pages)
		}
	})

	t.Run("途中で切れた応答を最後の完全なページまで修復できること", func(t *testing.T) {
		// ページ7の途中でmax_tokensに達した想定の応答
		raw := `{"title": "Tronqué", "pages": [` +
			`{"page": 4, "type": "text", "text": "Liam marche."},` +
			`{"page": 5, "type": "image", "image_prompt": "forêt"},` +
			`{"page": 7, "type": "image", "image_prompt": "Liam grimpe un arb`

		content, err := ExtractBookContent(raw)
		if err != nil {
			t.Fatalf("修復失敗なのだ: %v", err)
		}
		if len(content.Pages) == 0 {
			t.Fatal("修復後のページが空なのだ")
		}
		lastPage := content.Pages[len(content.Pages)-1]
		if n, _ := lastPage.ID.Number(); n >= 7 {
			t.Errorf("切れたページ7が混入しているのだ: %s", lastPage.ID)
		}
		if content.Title != "Tronqué" {
			t.Errorf("タイトルが失われたのだ: %s", content.Title)
		}
	})

	t.Run("JSONが全くなければエラーになること", func(t *testing.T) {
		if _, err := ExtractBookContent("désolé, je ne peux pas"); err == nil {
			t.Error("エラーが発生しませんでした")
		}
	})

	t.Run("修復不能な断片はエラーになること", func(t *testing.T) {
		if _, err := ExtractBookContent(`{"title": "x", "pages": [`); err == nil {
			t.Error("エラーが発生しませんでした")
		}
	})
}
