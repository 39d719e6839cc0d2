package wizard

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// script は質問順に並んだ入力行を返します。
func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestWizard_Run(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "emma.jpg")
	if err := os.WriteFile(photo, []byte("jpegdata"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(dir)
	w.In = script(
		"Emma",             // prénom
		"4",                // âge
		"fille",            // genre
		photo,              // photo
		"yeux verts, boucles brunes", // complément
		"",                 // tenue
		"La Forêt Magique", // thème
		"Le courage",       // valeur
		"",                 // tonalité
		"",                 // titre
		"Pour Emma, avec amour.", // dédicace
		"",                 // langue (défaut fr)
		"o",                // ajouter un personnage ?
		"son chat",         // relation
		"Moustache",        // nom
		"",                 // photo du personnage
		"chat roux tigré",  // description
		"n",                // autre personnage ?
		"oui",              // confirmation finale
	)
	var out bytes.Buffer
	w.Out = &out

	configPath, err := w.Run()
	if err != nil {
		t.Fatalf("フォームの実行に失敗したのだ: %v", err)
	}
	if configPath == "" {
		t.Fatal("確認したのに config.json のパスが空なのだ")
	}

	cfg, err := domain.LoadBookConfig(configPath)
	if err != nil {
		t.Fatalf("書き出された config.json が読めないのだ: %v", err)
	}
	if cfg.Child.FirstName != "Emma" || cfg.Child.Age != 4 || cfg.Child.Gender != "fille" {
		t.Errorf("子どもの情報が一致しないのだ: %+v", cfg.Child)
	}
	if cfg.Child.Photo != "./photos/emma.jpg" {
		t.Errorf("写真の相対パスが期待と違うのだ: %s", cfg.Child.Photo)
	}
	if cfg.Book.Theme != "La Forêt Magique" || cfg.Book.Language != "fr" {
		t.Errorf("本の設定が一致しないのだ: %+v", cfg.Book)
	}
	if len(cfg.SecondaryCharacters) != 1 || cfg.SecondaryCharacters[0].Name() != "Moustache" {
		t.Errorf("脇役の設定が一致しないのだ: %+v", cfg.SecondaryCharacters)
	}
	if !cfg.Options.IncludeQuestionsPage || cfg.Options.NumberOfQuestions != 5 {
		t.Errorf("巻末ページのデフォルトが一致しないのだ: %+v", cfg.Options)
	}

	// 写真が photos/ にコピーされていること
	if _, err := os.Stat(filepath.Join(dir, "photos", "emma.jpg")); err != nil {
		t.Errorf("写真がコピーされていないのだ: %v", err)
	}
}

func TestWizard_Run_Cancelled(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	w.In = script(
		"Liam",
		"3",
		"garçon",
		"", // pas de photo
		"cheveux blonds",
		"",
		"L'espace",
		"L'amitié",
		"", "", "", "",
		"n", // pas de personnage secondaire
		"n", // annulation
	)
	var out bytes.Buffer
	w.Out = &out

	configPath, err := w.Run()
	if err != nil {
		t.Fatalf("拒否は正常終了のはずなのだ: %v", err)
	}
	if configPath != "" {
		t.Errorf("拒否したのにパスが返ってきたのだ: %s", configPath)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.json")); !os.IsNotExist(err) {
		t.Error("拒否したのに config.json が書かれているのだ")
	}
	if !strings.Contains(out.String(), "annulée") {
		t.Error("キャンセルの案内が表示されていないのだ")
	}
}

func TestWizard_Run_RetriesInvalidInput(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	w.In = script(
		"",     // prénom vide → redemandé
		"Nora",
		"douze", // pas un nombre
		"12",    // hors plage
		"5",
		"autre", // choix invalide
		"neutre",
		"/nulle/part/photo.png", // fichier absent
		"",                      // passer
		"cheveux noirs",
		"",
		"Les fonds marins",
		"Le partage",
		"", "", "", "",
		"n",
		"oui",
	)
	var out bytes.Buffer
	w.Out = &out

	configPath, err := w.Run()
	if err != nil {
		t.Fatalf("フォームの実行に失敗したのだ: %v", err)
	}
	cfg, err := domain.LoadBookConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Child.FirstName != "Nora" || cfg.Child.Age != 5 || cfg.Child.Gender != "neutre" {
		t.Errorf("再入力後の値が反映されていないのだ: %+v", cfg.Child)
	}
	for _, warn := range []string{"obligatoire", "nombre valide", "entre 1 et 8", "Choisissez parmi", "introuvable"} {
		if !strings.Contains(out.String(), warn) {
			t.Errorf("警告 %q が表示されていないのだ", warn)
		}
	}
}
