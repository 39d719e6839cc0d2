package prompt

import (
	"strings"
	"testing"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

func testConfig() *domain.BookConfig {
	return &domain.BookConfig{
		Child: domain.Child{FirstName: "Liam", Age: 5, Gender: "garçon"},
		SecondaryCharacters: []domain.SecondaryCharacter{
			{Relation: "son chat", DisplayName: "Moustache"},
		},
	}
}

func TestBuildCharacterBrief(t *testing.T) {
	t.Run("説明がある人物だけがブリーフに並ぶこと", func(t *testing.T) {
		brief := BuildCharacterBrief(map[string]string{
			"child":     "Liam has short brown hair...",
			"Moustache": "Moustache has grey striped fur...",
		}, testConfig())

		if !strings.HasPrefix(brief, briefHeader) {
			t.Error("ヘッダーで始まっていないのだ")
		}
		if !strings.Contains(brief, "Liam: Liam has short brown hair") {
			t.Error("主人公の行がないのだ")
		}
		if !strings.Contains(brief, "Moustache: Moustache has grey striped fur") {
			t.Error("脇役の行がないのだ")
		}
	})

	t.Run("説明が空ならブリーフも空になること", func(t *testing.T) {
		if brief := BuildCharacterBrief(nil, testConfig()); brief != "" {
			t.Errorf("空文字のはずなのだ: %q", brief)
		}
	})
}

func TestSplitBrief(t *testing.T) {
	enriched := briefHeader + "\n" +
		"Liam: Liam has short brown hair and green eyes.\n" +
		briefFooter + "\n" +
		"[PERSONNAGES]\nLiam, 5 ans...\n[SCÈNE]\nLiam court dans la forêt."

	b := SplitBrief(enriched)
	if len(b.Names) != 1 || b.Names[0] != "Liam" {
		t.Errorf("人物名の抽出が正しくないのだ: %v", b.Names)
	}
	if !strings.Contains(b.PhysicalDesc, "short brown hair") {
		t.Errorf("外見説明が抽出できていないのだ: %s", b.PhysicalDesc)
	}
	if !strings.HasPrefix(b.ScenePrompt, "[PERSONNAGES]") {
		t.Errorf("シーン部分の切り出しが正しくないのだ: %s", b.ScenePrompt)
	}

	t.Run("ブリーフなしは全文がシーンになること", func(t *testing.T) {
		b := SplitBrief("a quiet meadow at dawn")
		if b.ScenePrompt != "a quiet meadow at dawn" || len(b.Names) != 0 {
			t.Errorf("分離結果が正しくないのだ: %+v", b)
		}
	})
}

func TestBrief_CharacterInScene(t *testing.T) {
	cases := []struct {
		name     string
		brief    Brief
		expected bool
	}{
		{"シーンに名前があれば登場", Brief{Names: []string{"Liam"}, ScenePrompt: "liam joue au ballon"}, true},
		{"名前がなければ非登場", Brief{Names: []string{"Liam"}, ScenePrompt: "une forêt vide au matin"}, false},
		{"名前リストが空なら安全側で登場扱い", Brief{ScenePrompt: "une forêt vide"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.brief.CharacterInScene(); got != tc.expected {
				t.Errorf("期待値 %v, 実際の値 %v", tc.expected, got)
			}
		})
	}
}

func TestStripCharacterSection(t *testing.T) {
	scene := "[PERSONNAGES]\nLiam, 5 ans, cheveux bruns...\n[SCÈNE]\nLiam grimpe un arbre.\n[AMBIANCE]\nLumière dorée."
	got := StripCharacterSection(scene)
	if !strings.HasPrefix(got, "[SCÈNE]") {
		t.Errorf("[PERSONNAGES] が除去されていないのだ: %s", got)
	}

	t.Run("セクションがなければそのまま返ること", func(t *testing.T) {
		plain := "un pré fleuri au printemps"
		if got := StripCharacterSection(plain); got != plain {
			t.Errorf("変更されないはずなのだ: %s", got)
		}
	})
}

func TestBuildReferencePrompt(t *testing.T) {
	b := Brief{
		Names:        []string{"Liam"},
		PhysicalDesc: "Liam has short brown hair.",
		ScenePrompt:  "[PERSONNAGES]\nLiam...\n[SCÈNE]\nLiam court.",
	}
	got := BuildReferencePrompt(b, "watercolor style")
	if !strings.Contains(got, "CRITICAL: keep exactly the same character") {
		t.Error("変換指示の層がないのだ")
	}
	if strings.Contains(got, "[PERSONNAGES]") {
		t.Error("[PERSONNAGES] セクションが残っているのだ")
	}
	if !strings.Contains(got, "Scene: [SCÈNE]") {
		t.Errorf("シーン層の組み立てが正しくないのだ: %s", got)
	}
}

func TestBuildStoryUserPrompt(t *testing.T) {
	cfg := testConfig()
	cfg.Book = domain.Book{Theme: "La forêt magique", EducationalValue: "Le courage", Language: "fr"}
	cfg.SecondaryCharacters[0].Appearance = "chat gris tigré"
	cfg.Options = domain.BookOptions{IncludeQuestionsPage: true, NumberOfQuestions: 5}

	got, err := BuildStoryUserPrompt(cfg)
	if err != nil {
		t.Fatalf("組み立て失敗なのだ: %v", err)
	}
	for _, want := range []string{
		"Prénom : Liam",
		"- son chat (Moustache) : chat gris tigré",
		"Thème : La forêt magique",
		"oui, génère 5 questions",
		"Tenue par défaut : à ton choix, adaptée au thème",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("%q が含まれていないのだ", want)
		}
	}
}
