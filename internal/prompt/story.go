// Package prompt は物語生成・画像生成に使うプロンプトの組み立てを担当するのだ。
package prompt

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

//go:embed story_system.md
var StorySystemPrompt string

// storyUserTemplate は絵本設定からユーザープロンプトを組み立てるテンプレートなのだ。
// 物語生成APIへの入力なので本文はフランス語で固定している。
const storyUserTemplate = `Voici les informations pour générer le livre personnalisé :

═══ ENFANT ═══
- Prénom : {{.Child.FirstName}}
- Âge : {{.Child.Age}} ans
- Genre : {{.Child.Gender}}
- Apparence physique : {{.Child.Appearance}}
- Tenue par défaut : {{.Outfit}}

═══ PERSONNAGES SECONDAIRES ═══
{{.CharsText}}
═══ LIVRE ═══
- Thème : {{.Book.Theme}}
- Valeur éducative : {{.Book.EducationalValue}}
- Tonalité : {{.Tone}}
- Titre : {{.Title}}
- Dédicace : {{.Dedication}}
- Questions de fin : {{.QuestionsText}}
- Langue : {{.Book.Language}}

Génère maintenant l'intégralité du livre en JSON selon tes instructions.`

var storyTmpl = template.Must(template.New("story_user").Parse(storyUserTemplate))

// BuildStoryUserPrompt は設定からテキスト生成APIに渡すユーザープロンプトを作るのだ。
func BuildStoryUserPrompt(cfg *domain.BookConfig) (string, error) {
	charsText := "Aucun personnage secondaire.\n"
	if len(cfg.SecondaryCharacters) > 0 {
		var b strings.Builder
		for _, c := range cfg.SecondaryCharacters {
			namePart := ""
			if c.DisplayName != "" {
				namePart = fmt.Sprintf(" (%s)", c.DisplayName)
			}
			fmt.Fprintf(&b, "- %s%s : %s\n", c.Relation, namePart, c.Appearance)
		}
		charsText = b.String()
	}

	questionsText := "non"
	if cfg.Options.IncludeQuestionsPage {
		n := cfg.Options.NumberOfQuestions
		if n <= 0 {
			n = 5
		}
		questionsText = fmt.Sprintf("oui, génère %d questions", n)
	}

	data := struct {
		Child         domain.Child
		Book          domain.Book
		Outfit        string
		Tone          string
		Title         string
		Dedication    string
		CharsText     string
		QuestionsText string
	}{
		Child:         cfg.Child,
		Book:          cfg.Book,
		Outfit:        orDefault(cfg.Child.DefaultOutfit, "à ton choix, adaptée au thème"),
		Tone:          orDefault(cfg.Book.Tone, "à ton choix, adaptée au thème et à l'âge"),
		Title:         orDefault(cfg.Book.TitleSuggestion, "à ton choix"),
		Dedication:    orDefault(cfg.Book.Dedication, "aucune"),
		CharsText:     charsText,
		QuestionsText: questionsText,
	}

	var buf strings.Builder
	if err := storyTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("ユーザープロンプトの組み立てに失敗したのだ: %w", err)
	}
	return buf.String(), nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
