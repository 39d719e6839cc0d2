package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"La Forêt Magique", "la_foret_magique"},
		{"Léa", "lea"},
		{"L'espace !", "l_espace"},
		{"  Noël  à  la  mer  ", "noel_a_la_mer"},
		{"***", "livre"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.input); got != tc.expected {
			t.Errorf("%q: 期待値 %q, 実際の値 %q", tc.input, tc.expected, got)
		}
	}
}

func TestLayout_PDFPath(t *testing.T) {
	l := NewLayout("output")
	got := l.PDFPath("Léa", "La Forêt Magique")
	expected := filepath.Join("output", "final", "livre_lea_la_foret_magique.pdf")
	if got != expected {
		t.Errorf("期待値 %s, 実際の値 %s", expected, got)
	}
}

func TestLayout_BackupAndRestore(t *testing.T) {
	l := NewLayout(t.TempDir())
	if err := l.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	id := domain.PageID("7")

	t.Run("元画像がなければ退避はスキップされること", func(t *testing.T) {
		path, err := l.BackupImage(id)
		if err != nil {
			t.Fatalf("エラーは不要のはずなのだ: %v", err)
		}
		if path != "" {
			t.Errorf("退避先は空のはずなのだ: %s", path)
		}
	})

	t.Run("退避は版番号を重ねて積まれること", func(t *testing.T) {
		if err := os.WriteFile(l.ImagePath(id), []byte("v1"), 0o644); err != nil {
			t.Fatal(err)
		}
		first, err := l.BackupImage(id)
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(first) != "page_07_v1.png" {
			t.Errorf("第1版の名前が違うのだ: %s", first)
		}

		if err := os.WriteFile(l.ImagePath(id), []byte("v2"), 0o644); err != nil {
			t.Fatal(err)
		}
		second, err := l.BackupImage(id)
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(second) != "page_07_v2.png" {
			t.Errorf("第2版の名前が違うのだ: %s", second)
		}

		// 復元で第1版の内容に戻ること
		if err := l.RestoreImage(id, first); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(l.ImagePath(id))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != "v1" {
			t.Errorf("復元後の内容が違うのだ: %s", data)
		}
	})
}
