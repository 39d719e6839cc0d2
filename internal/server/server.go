// Package server は絵本生成のWebフロントエンドなのだ。
// 埋め込みの1ページUIとJSON APIを提供し、生成自体はバックグラウンドで
// pipeline を回して status.json 経由で進捗を返す。
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shouni/go-ehon-kit/internal/artifact"
	"github.com/shouni/go-ehon-kit/internal/config"
	"github.com/shouni/go-ehon-kit/internal/pipeline"
	"github.com/shouni/go-ehon-kit/internal/progress"
	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// maxPhotoBytes はアップロード写真1枚の上限なのだ。
const maxPhotoBytes = 10 * 1024 * 1024

// Handler はWeb UIとAPIのルーティング一式を保持します。
type Handler struct {
	cfg     *config.Config
	baseDir string
	layout  *artifact.Layout

	mu      sync.Mutex
	running bool
}

// New は作業ディレクトリを基準とするハンドラーを返すのだ。
func New(cfg *config.Config, baseDir string) *Handler {
	outputDir := cfg.Options.OutputDir
	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}
	return &Handler{
		cfg:     cfg,
		baseDir: baseDir,
		layout:  artifact.NewLayout(outputDir),
	}
}

// Routes はAPIと静的ページのマルチプレクサを組み立てるのだ。
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/books", h.HandleCreateBook)
	mux.HandleFunc("/api/avatars", h.HandleAvatars)
	mux.HandleFunc("/api/status", h.HandleStatus)
	mux.HandleFunc("/api/gallery", h.HandleGallery)
	mux.HandleFunc("/api/pdf", h.HandlePDF)
	mux.HandleFunc("/api/regenerate", h.HandleRegenerate)
	mux.HandleFunc("/images/", h.HandleImage)
	mux.HandleFunc("/avatars/", h.HandleAvatar)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("ヘルスチェックの応答に失敗したのだ", "error", err)
		}
	})
	mux.HandleFunc("/", h.HandleIndex)
	return mux
}

// writeJSON はJSON応答のヘルパーなのだ。
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("JSON応答のエンコードに失敗したのだ", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	slog.Error(message)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("エラー応答のエンコードに失敗したのだ", "error", err)
	}
}

// HandleCreateBook はフォーム（multipart）から config.json を組み立てて
// バックグラウンドで完全パイプラインを起動するのだ。
func (h *Handler) HandleCreateBook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "POSTのみ受け付けるのだ", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		h.writeError(w, "フォームの解析に失敗したのだ: "+err.Error(), http.StatusBadRequest)
		return
	}

	bookCfg, err := h.decodeBookConfig(r)
	if err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.savePhotos(r, bookCfg); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := bookCfg.Validate(); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	// 出力の初期化より前に実行枠を確保する。走行中のパイプラインの
	// 生成物を別リクエストが消してしまわないようにするため。
	if !h.tryAcquire() {
		h.writeError(w, "すでに生成が進行中なのだ", http.StatusConflict)
		return
	}

	if err := h.resetOutputs(); err != nil {
		h.release()
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	configPath := filepath.Join(h.baseDir, "config.json")
	data, err := json.MarshalIndent(bookCfg, "", "  ")
	if err != nil {
		h.release()
		h.writeError(w, "設定のエンコードに失敗したのだ", http.StatusInternalServerError)
		return
	}
	if err := os.WriteFile(configPath, append(data, '\n'), 0o644); err != nil {
		h.release()
		h.writeError(w, "config.json の書き出しに失敗したのだ: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.launch(configPath, func(ctx context.Context, cfg *config.Config) error {
		return pipeline.Execute(ctx, cfg)
	})

	h.writeJSON(w, map[string]any{
		"status": "started",
		"child":  bookCfg.Child.FirstName,
	})
}

// decodeBookConfig は "config" パートのJSONを読み取るのだ。
func (h *Handler) decodeBookConfig(r *http.Request) (*domain.BookConfig, error) {
	raw := r.FormValue("config")
	if raw == "" {
		return nil, errors.New("config パートが無いのだ")
	}
	var bookCfg domain.BookConfig
	if err := json.Unmarshal([]byte(raw), &bookCfg); err != nil {
		return nil, fmt.Errorf("config のデコードに失敗したのだ: %w", err)
	}
	if bookCfg.Book.Language == "" {
		bookCfg.Book.Language = "fr"
	}
	return &bookCfg, nil
}

// savePhotos はアップロードされた参照写真を photos/ に保存して
// 設定の photo フィールドに相対パスを書き込むのだ。
// パート名は photo_child（主人公）と photo_sec_<index>（脇役）。
func (h *Handler) savePhotos(r *http.Request, bookCfg *domain.BookConfig) error {
	if r.MultipartForm == nil {
		return nil
	}
	for field := range r.MultipartForm.File {
		if field != "photo_child" && !strings.HasPrefix(field, "photo_sec_") {
			continue
		}
		file, header, err := r.FormFile(field)
		if err != nil {
			return fmt.Errorf("写真 '%s' の読み取りに失敗したのだ: %w", field, err)
		}

		name := bookCfg.Child.FirstName
		idx := -1
		if field != "photo_child" {
			if _, err := fmt.Sscanf(field, "photo_sec_%d", &idx); err != nil || idx < 0 || idx >= len(bookCfg.SecondaryCharacters) {
				file.Close()
				return fmt.Errorf("写真パート '%s' が脇役と対応しないのだ", field)
			}
			name = bookCfg.SecondaryCharacters[idx].Name()
		}

		rel, err := h.savePhoto(file, header.Filename, name)
		file.Close()
		if err != nil {
			return err
		}
		if idx < 0 {
			bookCfg.Child.Photo = rel
		} else {
			bookCfg.SecondaryCharacters[idx].Photo = rel
		}
	}
	return nil
}

func (h *Handler) savePhoto(src io.Reader, originalName, characterName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		return "", fmt.Errorf("対応していない写真形式なのだ: %s", ext)
	}

	photosDir := filepath.Join(h.baseDir, "photos")
	if err := os.MkdirAll(photosDir, 0o755); err != nil {
		return "", fmt.Errorf("photos ディレクトリの作成に失敗したのだ: %w", err)
	}
	slug := artifact.Slugify(characterName)
	dest := filepath.Join(photosDir, slug+ext)

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("写真の保存先を作成できないのだ: %w", err)
	}
	defer out.Close()
	// 上限+1バイトまで読むことで、ちょうど上限のファイルと超過を区別する。
	// 黙って切り詰めると壊れた画像が参照写真として残ってしまう。
	written, err := io.Copy(out, io.LimitReader(src, maxPhotoBytes+1))
	if err != nil {
		return "", fmt.Errorf("写真の保存に失敗したのだ: %w", err)
	}
	if written > maxPhotoBytes {
		if rerr := os.Remove(dest); rerr != nil {
			slog.Warn("超過した写真の削除に失敗したのだ", "path", dest, "error", rerr)
		}
		return "", fmt.Errorf("写真が大きすぎるのだ（上限 %dMB）: %s", maxPhotoBytes/(1024*1024), originalName)
	}
	return "./photos/" + slug + ext, nil
}

// resetOutputs は前回の本の生成物を消して空のディレクトリを用意するのだ。
// 新しい本の作成時だけ呼ばれる。再生成やリトライでは呼ばない。
func (h *Handler) resetOutputs() error {
	for _, dir := range []string{
		h.layout.TextDir(),
		h.layout.ImageDir(),
		h.layout.AvatarDir(),
		h.layout.FinalDir(),
		h.layout.BackupDir(),
	} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("出力ディレクトリの初期化に失敗したのだ: %w", err)
		}
	}
	if err := os.Remove(h.layout.StatusPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("進捗ファイルの初期化に失敗したのだ: %w", err)
	}
	return h.layout.EnsureDirs()
}

// tryAcquire は唯一のバックグラウンド実行枠を予約するのだ。
// 判定と予約を同一クリティカルセクションで行うことで、同時POSTが
// 両方とも枠を取ってしまう競合を防ぐ。
func (h *Handler) tryAcquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return false
	}
	h.running = true
	return true
}

func (h *Handler) release() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}

// launch は生成をバックグラウンドで走らせるのだ。
// 呼び出し側が tryAcquire で実行枠を確保済みであること。
func (h *Handler) launch(configPath string, fn func(context.Context, *config.Config) error) {
	// CLIフラグ相当はサーバー起動時の設定を引き継ぐ
	cfg := *h.cfg
	cfg.Options.ConfigFile = configPath

	go func() {
		defer h.release()
		start := time.Now()
		if err := fn(context.Background(), &cfg); err != nil {
			slog.Error("バックグラウンド生成が失敗したのだ", "error", err)
			return
		}
		slog.Info("バックグラウンド生成が完了したのだ", "elapsed", time.Since(start).Round(time.Second))
	}()
}

// HandleStatus は status.json の現在値を返すのだ。UIはこれをポーリングする。
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := progress.Load(h.layout.StatusPath())
	if err != nil {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, status)
}

// HandleAvatars は水彩アバターの一覧（GET）と生成開始（POST）を扱うのだ。
// 挿絵生成に入る前にアバターだけ確認したい場合のためのAPI。
func (h *Handler) HandleAvatars(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listAvatars(w)
	case http.MethodPost:
		h.generateAvatars(w)
	default:
		h.writeError(w, "GETかPOSTのみ受け付けるのだ", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) listAvatars(w http.ResponseWriter) {
	entries, err := os.ReadDir(h.layout.AvatarDir())
	if err != nil && !os.IsNotExist(err) {
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type avatarItem struct {
		Character string `json:"character"`
		URL       string `json:"url"`
	}
	avatars := []avatarItem{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		avatars = append(avatars, avatarItem{
			Character: strings.TrimSuffix(strings.TrimPrefix(name, "avatar_"), ".png"),
			URL:       "/avatars/" + name,
		})
	}
	h.writeJSON(w, map[string]any{"avatars": avatars})
}

func (h *Handler) generateAvatars(w http.ResponseWriter) {
	configPath := filepath.Join(h.baseDir, "config.json")
	if _, err := os.Stat(configPath); err != nil {
		h.writeError(w, "config.json が無いのだ。先に本を作成してほしいのだ", http.StatusNotFound)
		return
	}

	if !h.tryAcquire() {
		h.writeError(w, "すでに生成が進行中なのだ", http.StatusConflict)
		return
	}

	h.launch(configPath, func(ctx context.Context, cfg *config.Config) error {
		return pipeline.ExecuteAvatarsOnly(ctx, cfg)
	})
	w.WriteHeader(http.StatusAccepted)
	h.writeJSON(w, map[string]string{"status": "generating_avatars"})
}

// galleryItem は一覧APIの1枚分なのだ。
type galleryItem struct {
	Page string `json:"page"`
	URL  string `json:"url"`
}

// HandleGallery は生成済み挿絵の一覧を返すのだ。
func (h *Handler) HandleGallery(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(h.layout.ImageDir())
	if err != nil {
		if os.IsNotExist(err) {
			h.writeJSON(w, map[string]any{"images": []galleryItem{}})
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var items []galleryItem
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".png") {
			continue
		}
		page := strings.TrimSuffix(name, ".png")
		page = strings.TrimPrefix(page, "page_")
		page = strings.TrimLeft(page, "0")
		if page == "" {
			page = "0"
		}
		items = append(items, galleryItem{Page: page, URL: "/images/" + name})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].URL < items[j].URL })
	h.writeJSON(w, map[string]any{"images": items})
}

// HandleImage は挿絵PNGを配信するのだ。
func (h *Handler) HandleImage(w http.ResponseWriter, r *http.Request) {
	h.serveFileFrom(w, r, h.layout.ImageDir(), strings.TrimPrefix(r.URL.Path, "/images/"))
}

// HandleAvatar は水彩アバターPNGを配信するのだ。
func (h *Handler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	h.serveFileFrom(w, r, h.layout.AvatarDir(), strings.TrimPrefix(r.URL.Path, "/avatars/"))
}

// serveFileFrom はディレクトリトラバーサルを防ぎつつ1ファイルを返すのだ。
func (h *Handler) serveFileFrom(w http.ResponseWriter, r *http.Request, dir, name string) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, "/\\") {
		h.writeError(w, "不正なファイル名なのだ", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, filepath.Join(dir, name))
}

// HandlePDF は完成したPDFをダウンロードさせるのだ。
func (h *Handler) HandlePDF(w http.ResponseWriter, r *http.Request) {
	pdfPath, err := h.findPDF()
	if err != nil {
		h.writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(pdfPath)))
	http.ServeFile(w, r, pdfPath)
}

// findPDF は final/ 配下の最新のPDFを探すのだ。
func (h *Handler) findPDF() (string, error) {
	matches, err := filepath.Glob(filepath.Join(h.layout.FinalDir(), "*.pdf"))
	if err != nil || len(matches) == 0 {
		return "", errors.New("完成したPDFがまだ無いのだ")
	}
	sort.Slice(matches, func(i, j int) bool {
		fi, _ := os.Stat(matches[i])
		fj, _ := os.Stat(matches[j])
		if fi == nil || fj == nil {
			return matches[i] < matches[j]
		}
		return fi.ModTime().After(fj.ModTime())
	})
	return matches[0], nil
}

// regenerateRequest は1ページ再生成APIの入力なのだ。
type regenerateRequest struct {
	Page string `json:"page"`
}

// HandleRegenerate は指定ページの挿絵を描き直すのだ。
// Web経由では対話編集もカスケードも行わない。
func (h *Handler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, "POSTのみ受け付けるのだ", http.StatusMethodNotAllowed)
		return
	}

	var req regenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "リクエストのデコードに失敗したのだ: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Page == "" {
		h.writeError(w, "page が指定されていないのだ", http.StatusBadRequest)
		return
	}

	configPath := filepath.Join(h.baseDir, "config.json")
	if _, err := os.Stat(configPath); err != nil {
		h.writeError(w, "config.json が無いのだ。先に本を作成してほしいのだ", http.StatusNotFound)
		return
	}

	if !h.tryAcquire() {
		h.writeError(w, "すでに生成が進行中なのだ", http.StatusConflict)
		return
	}

	page := req.Page
	h.launch(configPath, func(ctx context.Context, cfg *config.Config) error {
		cfg.Options.EditPrompt = false
		cfg.Options.Cascade = false
		return pipeline.ExecuteRegenerate(ctx, cfg, page)
	})

	w.WriteHeader(http.StatusAccepted)
	h.writeJSON(w, map[string]string{"status": "regenerating", "page": page})
}
