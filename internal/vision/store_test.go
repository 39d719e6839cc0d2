package vision

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// fakeDescriber はAPIを呼ばずに固定の説明を返すのだ。
type fakeDescriber struct {
	calls int
	desc  string
}

func (f *fakeDescriber) Describe(_ context.Context, _, name string) (string, error) {
	f.calls++
	return name + " " + f.desc, nil
}

func testBookConfig(t *testing.T, baseDir string) *domain.BookConfig {
	t.Helper()
	photo := filepath.Join("photos", "liam.jpg")
	if err := os.MkdirAll(filepath.Join(baseDir, "photos"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(baseDir, photo), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	return &domain.BookConfig{
		Book:  domain.Book{Theme: "La mer", EducationalValue: "Le partage"},
		Child: domain.Child{FirstName: "Liam", Age: 5, Photo: photo},
	}
}

func TestStore_LoadOrCreate(t *testing.T) {
	dir := t.TempDir()
	cfg := testBookConfig(t, dir)
	cachePath := filepath.Join(dir, "character_descriptions.json")

	fake := &fakeDescriber{desc: "has short brown hair."}
	store := NewStore(cachePath, fake)

	t.Run("初回は解析してキャッシュに書き込むこと", func(t *testing.T) {
		got, err := store.LoadOrCreate(context.Background(), cfg, dir)
		if err != nil {
			t.Fatal(err)
		}
		if got["child"] != "Liam has short brown hair." {
			t.Errorf("説明が一致しないのだ: %q", got["child"])
		}
		if fake.calls != 1 {
			t.Errorf("解析は1回のはずなのだ: %d", fake.calls)
		}
	})

	t.Run("2回目はキャッシュが使われて解析されないこと", func(t *testing.T) {
		fresh := NewStore(cachePath, fake)
		if _, err := fresh.LoadOrCreate(context.Background(), cfg, dir); err != nil {
			t.Fatal(err)
		}
		if fake.calls != 1 {
			t.Errorf("キャッシュが効いていないのだ: %d回呼ばれた", fake.calls)
		}
	})

	t.Run("旧版キャッシュは破棄して再解析すること", func(t *testing.T) {
		old := `{"_version": "1", "descriptions": {"child": "stale"}}`
		if err := os.WriteFile(cachePath, []byte(old), 0o644); err != nil {
			t.Fatal(err)
		}
		fresh := NewStore(cachePath, fake)
		got, err := fresh.LoadOrCreate(context.Background(), cfg, dir)
		if err != nil {
			t.Fatal(err)
		}
		if got["child"] == "stale" {
			t.Error("旧版キャッシュが使われてしまったのだ")
		}
		if fake.calls != 2 {
			t.Errorf("再解析されていないのだ: %d回", fake.calls)
		}
	})
}

func TestLooksLikeRefusal(t *testing.T) {
	cases := []struct {
		desc     string
		expected bool
	}{
		{"I'm sorry, but I can't describe real people in photos.", true},
		{"Je ne peux pas analyser cette image.", true},
		{"Liam has short curly brown hair and green eyes.", false},
	}
	for _, tc := range cases {
		if got := LooksLikeRefusal(tc.desc); got != tc.expected {
			t.Errorf("%q: 期待値 %v, 実際の値 %v", tc.desc, tc.expected, got)
		}
	}
}
