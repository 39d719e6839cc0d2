package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// descriptionsVersion はファイルキャッシュの版なのだ。
// 解析プロンプトを変えたらここを上げると全キャラクターが再解析される。
const descriptionsVersion = "2"

// descriptionsFile は character_descriptions.json の形です。
type descriptionsFile struct {
	Version      string            `json:"_version"`
	Descriptions map[string]string `json:"descriptions"`
}

// Describer は写真1枚から外見説明を返すインターフェースです。
// テストではAPIを呼ばないフェイクに差し替えます。
type Describer interface {
	Describe(ctx context.Context, photoPath, name string) (string, error)
}

// Store は外見説明の永続キャッシュです。
type Store struct {
	path     string
	analyzer Describer
}

// NewStore は指定パスをキャッシュファイルとして使うストアを返します。
func NewStore(path string, analyzer Describer) *Store {
	return &Store{path: path, analyzer: analyzer}
}

// LoadOrCreate は写真付きキャラクター全員分の外見説明を返すのだ。
// キャッシュにある分は解析せず、足りない分だけAPIを呼んで追記保存する。
func (s *Store) LoadOrCreate(ctx context.Context, cfg *domain.BookConfig, baseDir string) (map[string]string, error) {
	cached := s.loadCached()
	descriptions := make(map[string]string, len(cached))
	for k, v := range cached {
		descriptions[k] = v
	}

	updated := false
	for _, ch := range cfg.PhotoCharacters() {
		if _, ok := descriptions[ch.Key]; ok {
			slog.Info("外見説明をキャッシュから読み込んだのだ", "character", ch.Name)
			continue
		}
		photoPath := filepath.Join(baseDir, ch.Photo)
		if _, err := os.Stat(photoPath); err != nil {
			slog.Warn("参照写真が見つからないためスキップするのだ", "character", ch.Name, "photo", photoPath)
			continue
		}

		slog.Info("参照写真を解析するのだ", "character", ch.Name)
		desc, err := s.analyzer.Describe(ctx, photoPath, ch.Name)
		if err != nil {
			slog.Warn("写真解析に失敗したのだ。外見説明なしで続行する", "character", ch.Name, "error", err)
			continue
		}
		descriptions[ch.Key] = desc
		updated = true
	}

	if updated {
		if err := s.save(descriptions); err != nil {
			return nil, err
		}
	}
	return descriptions, nil
}

// loadCached は版が一致する場合のみキャッシュを返すのだ。
func (s *Store) loadCached() map[string]string {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var f descriptionsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil
	}
	if f.Version != descriptionsVersion {
		slog.Info("外見説明キャッシュが旧版のため再解析するのだ", "cached", f.Version, "current", descriptionsVersion)
		return nil
	}
	return f.Descriptions
}

func (s *Store) save(descriptions map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("キャッシュディレクトリの作成に失敗したのだ: %w", err)
	}
	data, err := json.MarshalIndent(descriptionsFile{
		Version:      descriptionsVersion,
		Descriptions: descriptions,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("外見説明のエンコードに失敗したのだ: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("外見説明の保存に失敗したのだ: %w", err)
	}
	return nil
}
