package domain

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBookConfig_Validate(t *testing.T) {
	valid := BookConfig{
		Book:  Book{Theme: "La forêt magique", EducationalValue: "Le courage"},
		Child: Child{FirstName: "Liam", Age: 5},
	}

	t.Run("正常な設定は検証を通ること", func(t *testing.T) {
		cfg := valid
		if err := cfg.Validate(); err != nil {
			t.Errorf("エラーは不要のはずなのだ: %v", err)
		}
	})

	t.Run("年齢の範囲外は拒否されること", func(t *testing.T) {
		cfg := valid
		cfg.Child.Age = 12
		if err := cfg.Validate(); err == nil {
			t.Error("範囲外の年齢でエラーが発生しませんでした")
		}
	})

	t.Run("テーマ欠落は拒否されること", func(t *testing.T) {
		cfg := valid
		cfg.Book.Theme = ""
		if err := cfg.Validate(); err == nil {
			t.Error("テーマ欠落でエラーが発生しませんでした")
		}
	})
}

func TestSecondaryCharacter_Name(t *testing.T) {
	withName := SecondaryCharacter{Relation: "son chat", DisplayName: "Moustache"}
	if withName.Name() != "Moustache" {
		t.Errorf("表示名が優先されるはずなのだ: %s", withName.Name())
	}
	withoutName := SecondaryCharacter{Relation: "sa mamie"}
	if withoutName.Name() != "sa mamie" {
		t.Errorf("続柄へのフォールバックが効いていないのだ: %s", withoutName.Name())
	}
}

func TestBookConfig_PhotoCharacters(t *testing.T) {
	cfg := BookConfig{
		Child: Child{FirstName: "Liam", Age: 5, Photo: "./photos/liam.jpg"},
		SecondaryCharacters: []SecondaryCharacter{
			{Relation: "son chat", DisplayName: "Moustache", Photo: "./photos/moustache.png"},
			{Relation: "sa mamie"}, // 写真なし → 対象外
		},
	}

	chars := cfg.PhotoCharacters()
	if len(chars) != 2 {
		t.Fatalf("写真付きキャラクターは2人のはずなのだ: %d", len(chars))
	}
	if chars[0].Key != "child" || chars[1].Key != "Moustache" {
		t.Errorf("キーの割り当てが正しくないのだ: %+v", chars)
	}
}

func TestLoadBookConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"book": {"theme": "L'espace", "educational_value": "L'amitié"},
		"child": {"first_name": "Emma", "age": 4, "gender": "fille", "appearance": "cheveux bruns"}
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadBookConfig(path)
	if err != nil {
		t.Fatalf("読み込み失敗なのだ: %v", err)
	}
	if cfg.Child.FirstName != "Emma" {
		t.Errorf("期待値 'Emma', 実際の値 '%s'", cfg.Child.FirstName)
	}
	if cfg.Book.Language != "fr" {
		t.Errorf("言語のデフォルトは fr のはずなのだ: %s", cfg.Book.Language)
	}

	if _, err := LoadBookConfig(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("存在しないファイルでエラーが発生しませんでした")
	}
}
