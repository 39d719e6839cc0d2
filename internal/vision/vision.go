// Package vision は参照写真の解析を担当するパッケージです。
// 写真から「イラストレーター向けの外見説明」を抽出し、結果をファイルと
// メモリの2段キャッシュに保持します。
package vision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"google.golang.org/genai"

	"github.com/shouni/go-ehon-kit/internal/prompt"
)

// Analyzer は写真からキャラクターの外見説明を抽出するのだ。
type Analyzer struct {
	client *genai.Client
	model  string
	memo   *cache.Cache
}

// NewAnalyzer は Gemini のマルチモーダルAPIを使う解析器を返すのだ。
func NewAnalyzer(ctx context.Context, apiKey, model string) (*Analyzer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("visionクライアントの初期化に失敗したのだ: %w", err)
	}
	return &Analyzer{
		client: client,
		model:  model,
		memo:   cache.New(30*time.Minute, 1*time.Hour),
	}, nil
}

// Describe は写真を解析して外見説明を返します。同一写真への再解析は
// プロセス内メモキャッシュで抑止します。
func (a *Analyzer) Describe(ctx context.Context, photoPath, name string) (string, error) {
	if memoized, ok := a.memo.Get(photoPath); ok {
		return memoized.(string), nil
	}

	data, err := os.ReadFile(photoPath)
	if err != nil {
		return "", fmt.Errorf("参照写真の読み込みに失敗したのだ: %w", err)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt.BuildVisionPrompt(name)),
			genai.NewPartFromBytes(data, MimeByExt(photoPath)),
		}, genai.RoleUser),
	}

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("写真解析に失敗したのだ: %w", err)
	}

	desc := strings.TrimSpace(resp.Text())
	if desc == "" || LooksLikeRefusal(desc) {
		// モデルが人物写真の描写を拒否した場合は汎用説明に倒す。
		// ブリーフには載るが個人特定情報は含まない。
		desc = GenericDescription(name)
	}

	a.memo.Set(photoPath, desc, cache.DefaultExpiration)
	return desc, nil
}

// refusalMarkers はモデルが解析を断ったときに現れやすい言い回しなのだ。
var refusalMarkers = []string{
	"i can't",
	"i cannot",
	"i'm sorry",
	"i am sorry",
	"i'm unable",
	"i am unable",
	"unable to help",
	"cannot assist",
	"je ne peux pas",
}

// LooksLikeRefusal は応答が外見説明ではなく拒否文かどうかを推定します。
func LooksLikeRefusal(desc string) bool {
	head := strings.ToLower(desc)
	if len(head) > 120 {
		head = head[:120]
	}
	for _, marker := range refusalMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}

// GenericDescription は解析不能時のフォールバック説明です。
func GenericDescription(name string) string {
	return fmt.Sprintf("%s has a warm, friendly appearance with a gentle smile.", name)
}

// MimeByExt は拡張子から画像のMIMEタイプを推定するのだ。
func MimeByExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}
