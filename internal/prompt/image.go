package prompt

import (
	"fmt"
	"strings"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// 外見ブリーフの区切りマーカーなのだ。ブリーフは挿絵プロンプトの先頭に
// 前置され、参照画像ありの生成時にはここから人物名と外見説明を抜き出す。
const (
	briefHeader = "[CHARACTER APPEARANCE - reproduce exactly in the illustration]"
	briefFooter = "[END REFERENCE]"
)

// BuildCharacterBrief は写真解析で得た外見説明を挿絵プロンプト前置用の
// ブロックにまとめます。説明が1件もなければ空文字を返します。
func BuildCharacterBrief(descriptions map[string]string, cfg *domain.BookConfig) string {
	if len(descriptions) == 0 {
		return ""
	}

	lines := []string{briefHeader}
	if desc, ok := descriptions["child"]; ok && cfg.Child.FirstName != "" {
		lines = append(lines, fmt.Sprintf("%s: %s", cfg.Child.FirstName, desc))
	}
	for _, sec := range cfg.SecondaryCharacters {
		if sec.DisplayName == "" {
			continue
		}
		if desc, ok := descriptions[sec.DisplayName]; ok {
			lines = append(lines, fmt.Sprintf("%s: %s", sec.DisplayName, desc))
		}
	}
	if len(lines) == 1 {
		return ""
	}
	lines = append(lines, briefFooter, "")
	return strings.Join(lines, "\n")
}

// EnrichPrompt は挿絵プロンプトの先頭に外見ブリーフを前置するのだ。
func EnrichPrompt(brief, imagePrompt string) string {
	if brief == "" {
		return imagePrompt
	}
	return brief + imagePrompt
}

// Brief は前置済みプロンプトから分離した外見ブリーフの情報です。
type Brief struct {
	Names        []string // ブリーフに載っている人物名
	PhysicalDesc string   // 外見説明を1行に連結したもの
	ScenePrompt  string   // ブリーフを取り除いた残りのシーンプロンプト
}

// SplitBrief は前置済みプロンプトを外見ブリーフとシーン部分に分離します。
// ブリーフが無い場合は全文がシーンプロンプトになります。
func SplitBrief(enriched string) Brief {
	start := strings.Index(enriched, briefHeader)
	end := strings.Index(enriched, briefFooter)
	if start < 0 || end < 0 {
		return Brief{ScenePrompt: enriched}
	}
	end += len(briefFooter)

	var b Brief
	b.ScenePrompt = strings.TrimSpace(enriched[end:])
	var descParts []string
	for _, line := range strings.Split(enriched[start:end], "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "[") {
			continue
		}
		if name, _, ok := strings.Cut(line, ":"); ok {
			b.Names = append(b.Names, strings.TrimSpace(name))
		}
		descParts = append(descParts, line)
	}
	b.PhysicalDesc = strings.Join(descParts, " ")
	return b
}

// CharacterInScene はシーンプロンプトにブリーフの人物が登場するかを判定するのだ。
// 名前が1つも載っていない場合は安全側に倒して「登場する」とみなす。
func (b Brief) CharacterInScene() bool {
	if len(b.Names) == 0 || b.ScenePrompt == "" {
		return true
	}
	scene := strings.ToLower(b.ScenePrompt)
	for _, name := range b.Names {
		if strings.Contains(scene, strings.ToLower(name)) {
			return true
		}
	}
	return false
}

// sceneSections は [PERSONNAGES] の次に現れうるセクション見出しなのだ。
var sceneSections = []string{"[SCÈNE]", "[DECOR]", "[DÉCOR]", "[AMBIANCE]", "[TECHNIQUE]"}

// StripCharacterSection はシーンプロンプトから [PERSONNAGES] セクションを
// 取り除きます。参照アバターを使う生成では、テキストのキャラクター描写が
// アバターと食い違ってページ間の描画ブレを生むため、アバター自体を
// キャラクター設定として扱い、テキスト側の記述は落とします。
func StripCharacterSection(scene string) string {
	if !strings.Contains(scene, "[PERSONNAGES]") {
		return scene
	}
	for _, sec := range sceneSections {
		if i := strings.Index(scene, sec); i >= 0 {
			return scene[i:]
		}
	}
	return scene
}

// BuildReferencePrompt は参照アバター画像と一緒に送るプロンプトを組み立てます。
// 1層目が「参照と同一人物を保て」という変換指示、2層目がシーン記述です。
func BuildReferencePrompt(b Brief, styleSuffix string) string {
	var layer1 string
	if b.PhysicalDesc != "" {
		layer1 = "Use this reference illustration of the character as the visual base. " +
			fmt.Sprintf("CRITICAL: keep exactly the same character — same face, %s, ", b.PhysicalDesc) +
			"same physical appearance as shown in the reference. " +
			"Generate a completely new illustrated scene with this exact same character. " +
			"No text or letters anywhere in the image."
	} else {
		layer1 = "Use this reference illustration of the character as the visual base. " +
			"CRITICAL: keep exactly the same character — same face, hair color and style, " +
			"skin tone, and physical appearance as shown in the reference. " +
			"Generate a completely new illustrated scene with this exact same character. " +
			"No text or letters anywhere in the image."
	}
	scene := StripCharacterSection(b.ScenePrompt)
	return fmt.Sprintf("%s\n\nScene: %s %s", layer1, scene, styleSuffix)
}

// BuildAvatarPrompt は写真から水彩アバターを起こすためのプロンプトです。
// このアバターが全ページの視覚的な参照になります。
func BuildAvatarPrompt(name, physicalDesc string) string {
	if physicalDesc != "" {
		return "Transform this reference photo into a soft watercolor children's book character portrait. " +
			fmt.Sprintf("CRITICAL: faithfully reproduce the exact facial features, %s, ", physicalDesc) +
			"and physical appearance from the reference photo. " +
			fmt.Sprintf("Full body illustration of %s on a simple plain white background. ", name) +
			"Natural friendly pose, character clearly visible from head to toe. " +
			"Soft watercolor style, round and gentle art, warm expression. " +
			"No text or letters anywhere in the image."
	}
	return "Transform this reference photo into a soft watercolor children's book character portrait. " +
		"CRITICAL: faithfully reproduce the exact facial features, hair color and style, " +
		"skin tone, and physical appearance from the reference photo. " +
		fmt.Sprintf("Full body illustration of %s on a simple plain white background. ", name) +
		"Natural friendly pose, character clearly visible from head to toe. " +
		"Soft watercolor style, round and gentle art. " +
		"No text or letters anywhere in the image."
}

// BuildVisionPrompt は参照写真から描画用の外見説明を抽出させるプロンプトです。
// 実在人物の特定を避けつつ、イラストレーターに必要な視覚情報だけを求めます。
func BuildVisionPrompt(name string) string {
	return "This image will be used as a visual reference for drawing a fictional character " +
		fmt.Sprintf("named %s in a children's book illustration. ", name) +
		"Describe only the visible physical traits useful for an illustrator: " +
		"hair color, hair texture and length, hairstyle, skin tone, approximate age, " +
		"eye color if visible, and any clothing or outfit with specific colors. " +
		fmt.Sprintf("Write a concise description under 100 words starting with '%s has...'. ", name) +
		"Do not identify or name any real person."
}
