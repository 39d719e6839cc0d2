package domain

import (
	"encoding/json"
	"fmt"
	"os"
)

// BookConfig は絵本一冊を生成するための入力設定全体を保持します。
// 対話フォームまたはWeb UIが書き出す config.json と1対1で対応します。
type BookConfig struct {
	Book                Book                 `json:"book"`
	Child               Child                `json:"child"`
	SecondaryCharacters []SecondaryCharacter `json:"secondary_characters"`
	Options             BookOptions          `json:"options"`
	NotificationEmail   string               `json:"notification_email,omitempty"`
}

// Book は物語そのものに関する設定です。
type Book struct {
	TitleSuggestion  string `json:"title_suggestion"`
	Language         string `json:"language"`
	Theme            string `json:"theme"`
	EducationalValue string `json:"educational_value"`
	Tone             string `json:"tone"`
	Dedication       string `json:"dedication"`
}

// Child は主人公となる子どもの情報です。Photo は参照写真への相対パスです。
type Child struct {
	FirstName     string `json:"first_name"`
	Age           int    `json:"age"`
	Gender        string `json:"gender"`
	Appearance    string `json:"appearance"`
	DefaultOutfit string `json:"default_outfit"`
	Photo         string `json:"photo,omitempty"`
}

// SecondaryCharacter は脇役（ペットや祖母など）の定義です。
// DisplayName が空の場合、物語中では Relation（続柄）で呼ばれます。
type SecondaryCharacter struct {
	Relation    string `json:"relation"`
	DisplayName string `json:"display_name"`
	Appearance  string `json:"appearance"`
	Photo       string `json:"photo,omitempty"`
}

// BookOptions は巻末ページなどの付加要素の設定です。
type BookOptions struct {
	IncludeQuestionsPage bool `json:"include_questions_page"`
	NumberOfQuestions    int  `json:"number_of_questions"`
}

// Name は物語中で使う脇役の呼び名を返します。
func (s SecondaryCharacter) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Relation
}

// PhotoCharacters は参照写真を持つキャラクター（主人公含む）の一覧を返します。
// 写真解析やアバター生成の対象を列挙するためのヘルパーです。
func (c *BookConfig) PhotoCharacters() []PhotoCharacter {
	var chars []PhotoCharacter
	if c.Child.Photo != "" {
		chars = append(chars, PhotoCharacter{
			Key:   "child",
			Name:  c.Child.FirstName,
			Role:  fmt.Sprintf("child aged %d, %s", c.Child.Age, c.Child.Gender),
			Photo: c.Child.Photo,
		})
	}
	for _, sec := range c.SecondaryCharacters {
		if sec.Photo == "" {
			continue
		}
		chars = append(chars, PhotoCharacter{
			Key:   sec.Name(),
			Name:  sec.Name(),
			Role:  sec.Relation,
			Photo: sec.Photo,
		})
	}
	return chars
}

// PhotoCharacter は写真付きキャラクターの解析・アバター生成用ビューです。
type PhotoCharacter struct {
	Key   string // 説明キャッシュのキー
	Name  string
	Role  string
	Photo string // 参照写真の相対パス
}

// Validate は必須項目と値域の検証を行い、最初の違反をエラーとして返すのだ。
func (c *BookConfig) Validate() error {
	if c.Child.FirstName == "" {
		return fmt.Errorf("子どもの名前（child.first_name）が設定されていません")
	}
	if c.Child.Age < 1 || c.Child.Age > 8 {
		return fmt.Errorf("対象年齢は1〜8歳です: %d", c.Child.Age)
	}
	if c.Book.Theme == "" {
		return fmt.Errorf("テーマ（book.theme）が設定されていません")
	}
	if c.Book.EducationalValue == "" {
		return fmt.Errorf("教育的価値（book.educational_value）が設定されていません")
	}
	return nil
}

// LoadBookConfig は指定されたパスから config.json を読み込んで検証するのだ。
func LoadBookConfig(path string) (*BookConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイルの読み込みに失敗したのだ: %w", err)
	}
	var cfg BookConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのデコードに失敗したのだ: %w", err)
	}
	if cfg.Book.Language == "" {
		cfg.Book.Language = "fr"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
