// Package wizard は対話式フォームで config.json を組み立てるパッケージなのだ。
// Web UIを使わない場合のエントリーポイントとなる。
package wizard

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// Wizard は標準入出力を通じて絵本の設定を聞き取るフォームです。
// In / Out を差し替えることでテストからも駆動できます。
type Wizard struct {
	In  io.Reader
	Out io.Writer

	// BaseDir は config.json と photos/ を書き出すディレクトリ。
	BaseDir string

	reader *bufio.Reader
}

// New は作業ディレクトリを基準とする Wizard を返すのだ。
func New(baseDir string) *Wizard {
	return &Wizard{In: os.Stdin, Out: os.Stdout, BaseDir: baseDir}
}

// Run はフォーム一式を実行し、書き出した config.json のパスを返すのだ。
// 最終確認で拒否された場合は空文字列を返す（エラーではない）。
func (w *Wizard) Run() (string, error) {
	w.reader = bufio.NewReader(w.In)

	fmt.Fprintln(w.Out)
	fmt.Fprintln(w.Out, strings.Repeat("═", 45))
	fmt.Fprintln(w.Out, "  📖 Générateur de Livre Personnalisé")
	fmt.Fprintln(w.Out, strings.Repeat("═", 45))

	// --- 子どもの情報 ---
	w.section("👶 INFORMATIONS SUR L'ENFANT")

	firstName, err := w.inputRequired("Prénom de l'enfant")
	if err != nil {
		return "", err
	}
	age, err := w.inputInt("Âge", 1, 8)
	if err != nil {
		return "", err
	}
	gender, err := w.inputChoice("Genre", []string{"fille", "garçon", "neutre"})
	if err != nil {
		return "", err
	}
	photoPath, err := w.inputPhoto("Chemin vers la photo de l'enfant")
	if err != nil {
		return "", err
	}

	var appearance string
	if photoPath != "" {
		fmt.Fprintln(w.Out, "  📷 La photo sera utilisée comme référence visuelle.")
		appearance, err = w.inputRequired("  Ajoute une description pour compléter (couleur des yeux, coiffure, etc.)")
	} else {
		appearance, err = w.inputRequired("Description physique de l'enfant")
	}
	if err != nil {
		return "", err
	}

	defaultOutfit, err := w.input("Tenue par défaut (ou Entrée pour laisser l'IA choisir)", "")
	if err != nil {
		return "", err
	}

	childPhotoRel := ""
	if photoPath != "" {
		childPhotoRel, err = w.copyPhoto(photoPath, firstName)
		if err != nil {
			return "", err
		}
	}

	// --- 本の設定 ---
	w.section("📚 LE LIVRE")

	theme, err := w.inputRequired("Thème (ex : La forêt magique, L'espace, Les fonds marins)")
	if err != nil {
		return "", err
	}
	educationalValue, err := w.inputRequired("Valeur éducative (ex : Le courage, L'amitié, Le partage)")
	if err != nil {
		return "", err
	}
	tone, err := w.input("Tonalité souhaitée (ou Entrée pour auto)", "")
	if err != nil {
		return "", err
	}
	titleSuggestion, err := w.input("Suggestion de titre (ou Entrée pour auto)", "")
	if err != nil {
		return "", err
	}
	dedication, err := w.input("Dédicace (texte libre, ou Entrée pour passer)", "")
	if err != nil {
		return "", err
	}
	language, err := w.input("Langue", "fr")
	if err != nil {
		return "", err
	}

	// --- 脇役 ---
	w.section("👥 PERSONNAGES SECONDAIRES")

	var secondary []domain.SecondaryCharacter
	for {
		ok, err := w.confirm("Ajouter un personnage secondaire ?")
		if err != nil {
			return "", err
		}
		if !ok {
			break
		}
		relation, err := w.inputRequired("  Relation avec l'enfant (ex : son chat, sa mamie)")
		if err != nil {
			return "", err
		}
		displayName, err := w.input("  Nom dans l'histoire (ex : Moustache) ou Entrée", "")
		if err != nil {
			return "", err
		}
		charPhoto, err := w.inputPhoto("  Chemin vers une photo")
		if err != nil {
			return "", err
		}
		charAppearance, err := w.inputRequired("  Description physique")
		if err != nil {
			return "", err
		}

		sec := domain.SecondaryCharacter{
			Relation:    relation,
			DisplayName: displayName,
			Appearance:  charAppearance,
		}
		if charPhoto != "" {
			name := displayName
			if name == "" {
				name = relation
			}
			sec.Photo, err = w.copyPhoto(charPhoto, name)
			if err != nil {
				return "", err
			}
		}
		secondary = append(secondary, sec)
		fmt.Fprintln(w.Out)
	}

	cfg := &domain.BookConfig{
		Book: domain.Book{
			TitleSuggestion:  titleSuggestion,
			Language:         language,
			Theme:            theme,
			EducationalValue: educationalValue,
			Tone:             tone,
			Dedication:       dedication,
		},
		Child: domain.Child{
			FirstName:     firstName,
			Age:           age,
			Gender:        gender,
			Appearance:    appearance,
			DefaultOutfit: defaultOutfit,
			Photo:         childPhotoRel,
		},
		SecondaryCharacters: secondary,
		Options: domain.BookOptions{
			IncludeQuestionsPage: true,
			NumberOfQuestions:    5,
		},
	}

	w.printRecap(cfg)

	fmt.Fprintln(w.Out)
	ok, err := w.confirm("✅ Confirmer et lancer la génération ?")
	if err != nil {
		return "", err
	}
	if !ok {
		fmt.Fprintln(w.Out, "❌ Génération annulée.")
		return "", nil
	}

	configPath := filepath.Join(w.BaseDir, "config.json")
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("設定のエンコードに失敗したのだ: %w", err)
	}
	if err := os.WriteFile(configPath, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("config.json の書き出しに失敗したのだ: %w", err)
	}
	fmt.Fprintf(w.Out, "\n💾 Configuration sauvegardée : %s\n", configPath)
	return configPath, nil
}

func (w *Wizard) section(title string) {
	fmt.Fprintln(w.Out)
	fmt.Fprintln(w.Out, title)
	fmt.Fprintln(w.Out, strings.Repeat("─", 35))
}

func (w *Wizard) printRecap(cfg *domain.BookConfig) {
	w.section("📋 RÉCAPITULATIF")
	fmt.Fprintf(w.Out, "  Prénom : %s\n", cfg.Child.FirstName)
	fmt.Fprintf(w.Out, "  Âge : %d ans\n", cfg.Child.Age)
	fmt.Fprintf(w.Out, "  Genre : %s\n", cfg.Child.Gender)
	fmt.Fprintf(w.Out, "  Apparence : %s\n", cfg.Child.Appearance)
	if cfg.Child.DefaultOutfit != "" {
		fmt.Fprintf(w.Out, "  Tenue : %s\n", cfg.Child.DefaultOutfit)
	}
	if cfg.Child.Photo != "" {
		fmt.Fprintf(w.Out, "  Photo : %s\n", cfg.Child.Photo)
	}
	fmt.Fprintf(w.Out, "  Thème : %s\n", cfg.Book.Theme)
	fmt.Fprintf(w.Out, "  Valeur : %s\n", cfg.Book.EducationalValue)
	if cfg.Book.Tone != "" {
		fmt.Fprintf(w.Out, "  Tonalité : %s\n", cfg.Book.Tone)
	}
	if cfg.Book.TitleSuggestion != "" {
		fmt.Fprintf(w.Out, "  Titre suggéré : %s\n", cfg.Book.TitleSuggestion)
	}
	if cfg.Book.Dedication != "" {
		fmt.Fprintf(w.Out, "  Dédicace : %s\n", cfg.Book.Dedication)
	}
	fmt.Fprintf(w.Out, "  Langue : %s\n", cfg.Book.Language)
	if len(cfg.SecondaryCharacters) > 0 {
		fmt.Fprintf(w.Out, "  Personnages secondaires : %d\n", len(cfg.SecondaryCharacters))
		for _, c := range cfg.SecondaryCharacters {
			fmt.Fprintf(w.Out, "    - %s (%s)\n", c.Name(), c.Relation)
		}
	}
}

// readLine は1行読み取ってトリムするのだ。EOFで未入力なら空で返す。
func (w *Wizard) readLine() (string, error) {
	line, err := w.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("入力の読み取りに失敗したのだ: %w", err)
	}
	if err == io.EOF && line == "" {
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(line), nil
}

func (w *Wizard) input(prompt, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(w.Out, "%s [%s] : ", prompt, def)
	} else {
		fmt.Fprintf(w.Out, "%s : ", prompt)
	}
	val, err := w.readLine()
	if err != nil {
		return "", err
	}
	if val == "" {
		return def, nil
	}
	return val, nil
}

func (w *Wizard) inputRequired(prompt string) (string, error) {
	for {
		fmt.Fprintf(w.Out, "%s : ", prompt)
		val, err := w.readLine()
		if err != nil {
			return "", err
		}
		if val != "" {
			return val, nil
		}
		fmt.Fprintln(w.Out, "  ⚠️  Ce champ est obligatoire.")
	}
}

func (w *Wizard) inputInt(prompt string, min, max int) (int, error) {
	for {
		fmt.Fprintf(w.Out, "%s (%d-%d) : ", prompt, min, max)
		val, err := w.readLine()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			fmt.Fprintln(w.Out, "  ⚠️  Entrez un nombre valide.")
			continue
		}
		if n < min || n > max {
			fmt.Fprintf(w.Out, "  ⚠️  Entrez un nombre entre %d et %d.\n", min, max)
			continue
		}
		return n, nil
	}
}

func (w *Wizard) inputChoice(prompt string, choices []string) (string, error) {
	joined := strings.Join(choices, "/")
	for {
		fmt.Fprintf(w.Out, "%s (%s) : ", prompt, joined)
		val, err := w.readLine()
		if err != nil {
			return "", err
		}
		val = strings.ToLower(val)
		for _, c := range choices {
			if val == c {
				return val, nil
			}
		}
		fmt.Fprintf(w.Out, "  ⚠️  Choisissez parmi : %s\n", joined)
	}
}

// inputPhoto は写真パスの入力を受け付けるのだ。空入力はスキップ扱い。
// 存在確認と拡張子チェック（jpg/jpeg/png）を通るまで聞き直す。
func (w *Wizard) inputPhoto(prompt string) (string, error) {
	for {
		fmt.Fprintf(w.Out, "%s (ou Entrée pour passer) : ", prompt)
		val, err := w.readLine()
		if err != nil {
			return "", err
		}
		if val == "" {
			return "", nil
		}
		val = strings.Trim(val, `"'`)
		info, err := os.Stat(val)
		if err != nil || info.IsDir() {
			fmt.Fprintf(w.Out, "  ⚠️  Fichier introuvable : %s\n", val)
			continue
		}
		switch strings.ToLower(filepath.Ext(val)) {
		case ".jpg", ".jpeg", ".png":
			return val, nil
		default:
			fmt.Fprintf(w.Out, "  ⚠️  Format non supporté (%s). Utilisez jpg, jpeg ou png.\n", filepath.Ext(val))
		}
	}
}

func (w *Wizard) confirm(prompt string) (bool, error) {
	fmt.Fprintf(w.Out, "%s (o/n) : ", prompt)
	val, err := w.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(val) {
	case "o", "oui", "y", "yes":
		return true, nil
	}
	return false, nil
}

// copyPhoto は参照写真を photos/ 配下へコピーし、設定に書く相対パスを返すのだ。
func (w *Wizard) copyPhoto(srcPath, name string) (string, error) {
	photosDir := filepath.Join(w.BaseDir, "photos")
	if err := os.MkdirAll(photosDir, 0o755); err != nil {
		return "", fmt.Errorf("photos ディレクトリの作成に失敗したのだ: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(srcPath))
	slug := artifact.Slugify(name)
	dest := filepath.Join(photosDir, slug+ext)

	srcAbs, _ := filepath.Abs(srcPath)
	destAbs, _ := filepath.Abs(dest)
	if srcAbs != destAbs {
		src, err := os.Open(srcPath)
		if err != nil {
			return "", fmt.Errorf("写真の読み込みに失敗したのだ: %w", err)
		}
		defer src.Close()
		out, err := os.Create(dest)
		if err != nil {
			return "", fmt.Errorf("写真のコピー先を作成できないのだ: %w", err)
		}
		defer out.Close()
		if _, err := io.Copy(out, src); err != nil {
			return "", fmt.Errorf("写真のコピーに失敗したのだ: %w", err)
		}
	}
	return "./photos/" + slug + ext, nil
}
