package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cenkalti/backoff/v4"

	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/internal/config"
	"github.com/shouni/go-ehon-kit/internal/imaging"
	"github.com/shouni/go-ehon-kit/internal/prompt"
	"github.com/shouni/go-ehon-kit/internal/vision"
	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// AvatarRunner は写真付きキャラクターの水彩アバターを用意するのだ。
// アバターは全ページ共通の視覚参照として使われる。生の写真ではなく
// 一度アバター化した絵を参照にすることで、ページ間の画風が揃う。
type AvatarRunner struct {
	painter imaging.Painter
	bookCfg *domain.BookConfig
	layout  *artifact.Layout
	baseDir string
}

// NewAvatarRunner は AvatarRunner の新しいインスタンスを返すのだ。
func NewAvatarRunner(painter imaging.Painter, bookCfg *domain.BookConfig, layout *artifact.Layout, baseDir string) *AvatarRunner {
	return &AvatarRunner{painter: painter, bookCfg: bookCfg, layout: layout, baseDir: baseDir}
}

// Run は写真付きキャラクター全員分のアバターを生成し、
// キャラクターキーからアバター画像パスへのマップを返すのだ。
// 生成済みのアバターは再利用する。
func (ar *AvatarRunner) Run(ctx context.Context, descriptions map[string]string) (map[string]string, error) {
	avatars := make(map[string]string)

	for _, ch := range ar.bookCfg.PhotoCharacters() {
		avatarPath := ar.layout.AvatarPath(ch.Key)
		if _, err := os.Stat(avatarPath); err == nil {
			slog.Info("生成済みアバターを再利用するのだ", "character", ch.Name, "path", avatarPath)
			avatars[ch.Key] = avatarPath
			continue
		}

		photoPath := filepath.Join(ar.baseDir, ch.Photo)
		photo, err := os.ReadFile(photoPath)
		if err != nil {
			slog.Warn("参照写真が読めないためアバターをスキップするのだ", "character", ch.Name, "error", err)
			continue
		}

		slog.Info("水彩アバターを生成するのだ", "character", ch.Name)
		req := imaging.Request{
			Prompt:        prompt.BuildAvatarPrompt(ch.Name, descriptions[ch.Key]),
			Reference:     photo,
			ReferenceMime: vision.MimeByExt(photoPath),
		}

		var data []byte
		operation := func() error {
			var perr error
			data, perr = ar.painter.Paint(ctx, req)
			return perr
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), config.DefaultMaxRetries), ctx)
		if err := backoff.Retry(operation, policy); err != nil {
			return nil, fmt.Errorf("アバター生成に失敗したのだ (%s): %w", ch.Name, err)
		}

		if err := os.WriteFile(avatarPath, data, 0o644); err != nil {
			return nil, fmt.Errorf("アバターの保存に失敗したのだ: %w", err)
		}
		avatars[ch.Key] = avatarPath
		slog.Info("アバターが完成したのだ", "character", ch.Name, "path", avatarPath)
	}

	return avatars, nil
}

// PrimaryAvatar は挿絵生成の参照に使う代表アバター（主人公優先）を返すのだ。
func PrimaryAvatar(avatars map[string]string) string {
	if path, ok := avatars["child"]; ok {
		return path
	}
	for _, path := range avatars {
		return path
	}
	return ""
}
