// Package artifact は生成物ディレクトリの配置規約を一箇所に集約するパッケージです。
// テキスト・画像・PDF・進捗などの保存先パスはすべてここを経由して解決します。
package artifact

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// Layout は出力ルート配下の各生成物へのパスを解決します。
type Layout struct {
	Root string // 生成物ルート（既定: output/）
}

// NewLayout は指定ルートのレイアウトを返します。
func NewLayout(root string) *Layout {
	return &Layout{Root: root}
}

// EnsureDirs は生成に必要なディレクトリ階層を作成するのだ。
func (l *Layout) EnsureDirs() error {
	dirs := []string{
		l.TextDir(),
		l.ImageDir(),
		l.AvatarDir(),
		l.FinalDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("出力ディレクトリの作成に失敗したのだ: %w", err)
		}
	}
	return nil
}

func (l *Layout) TextDir() string   { return filepath.Join(l.Root, "text") }
func (l *Layout) ImageDir() string  { return filepath.Join(l.Root, "images") }
func (l *Layout) AvatarDir() string { return filepath.Join(l.Root, "avatars") }
func (l *Layout) FinalDir() string  { return filepath.Join(l.Root, "final") }
func (l *Layout) BackupDir() string { return filepath.Join(l.Root, "images_backup") }

// ContentPath は生成済み物語JSONのパスです。
func (l *Layout) ContentPath() string {
	return filepath.Join(l.TextDir(), "book_content.json")
}

// RawResponsePath はJSONパース失敗時に生レスポンスを退避するパスです。
func (l *Layout) RawResponsePath() string {
	return filepath.Join(l.TextDir(), "raw_response.txt")
}

// DescriptionsPath は写真解析結果のキャッシュファイルです。
func (l *Layout) DescriptionsPath() string {
	return filepath.Join(l.TextDir(), "character_descriptions.json")
}

// PromptsLogPath は画像生成に使った最終プロンプトの記録先です。
func (l *Layout) PromptsLogPath() string {
	return filepath.Join(l.Root, "prompts_log.json")
}

// StatusPath はWeb UIが監視する進捗ファイルです。
func (l *Layout) StatusPath() string {
	return filepath.Join(l.Root, "status.json")
}

// ImagePath は指定ページの挿絵画像パスを返します。
func (l *Layout) ImagePath(id domain.PageID) string {
	return filepath.Join(l.ImageDir(), id.Filename())
}

// AvatarPath はキャラクターの水彩アバター画像パスを返します。
func (l *Layout) AvatarPath(key string) string {
	return filepath.Join(l.AvatarDir(), "avatar_"+Slugify(key)+".png")
}

// PDFPath は最終PDFのパスを返します。
// 例: output/final/livre_liam_la_foret_magique.pdf
func (l *Layout) PDFPath(childName, theme string) string {
	name := fmt.Sprintf("livre_%s_%s.pdf", Slugify(childName), Slugify(theme))
	return filepath.Join(l.FinalDir(), name)
}

// NextBackupVersion は指定ページの次の退避版番号を返します（_v1 から開始）。
func (l *Layout) NextBackupVersion(id domain.PageID) int {
	base := id.Filename()
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	v := 1
	for {
		candidate := filepath.Join(l.BackupDir(), fmt.Sprintf("%s_v%d%s", stem, v, ext))
		if _, err := os.Stat(candidate); err != nil {
			return v
		}
		v++
	}
}

// BackupImage は既存の挿絵を images_backup/ に退避し、退避先パスを返すのだ。
// 元画像が存在しない場合は何もせず空文字を返す。
func (l *Layout) BackupImage(id domain.PageID) (string, error) {
	src := l.ImagePath(id)
	data, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("退避元画像の読み込みに失敗したのだ: %w", err)
	}
	if err := os.MkdirAll(l.BackupDir(), 0o755); err != nil {
		return "", fmt.Errorf("退避ディレクトリの作成に失敗したのだ: %w", err)
	}

	base := id.Filename()
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	dst := filepath.Join(l.BackupDir(), fmt.Sprintf("%s_v%d%s", stem, l.NextBackupVersion(id), ext))
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", fmt.Errorf("画像の退避に失敗したのだ: %w", err)
	}
	return dst, nil
}

// RestoreImage は退避した画像を元の位置に書き戻します。再生成失敗時の復旧用です。
func (l *Layout) RestoreImage(id domain.PageID, backupPath string) error {
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("退避画像の読み込みに失敗したのだ: %w", err)
	}
	if err := os.WriteFile(l.ImagePath(id), data, 0o644); err != nil {
		return fmt.Errorf("画像の復元に失敗したのだ: %w", err)
	}
	return nil
}
