// Package imaging は挿絵1枚分の画像生成を抽象化するパッケージです。
// 参照画像なしの生成は gemini-image-kit のジェネレーターに委譲し、
// 参照アバター付きの生成は Gemini のマルチモーダルAPIを直接叩きます。
package imaging

import (
	"context"
	"fmt"

	imagedom "github.com/shouni/gemini-image-kit/pkg/domain"
	"github.com/shouni/gemini-image-kit/pkg/generator"
	"google.golang.org/genai"
)

// Request は挿絵1枚分の生成要求です。
type Request struct {
	Prompt         string
	NegativePrompt string
	Reference      []byte // 参照アバター画像（PNG）。nil なら参照なし生成
	ReferenceMime  string
}

// Painter は挿絵を1枚描いて画像バイト列を返すインターフェースです。
type Painter interface {
	Paint(ctx context.Context, req Request) ([]byte, error)
}

// GeminiPainter は Painter の Gemini 実装なのだ。
type GeminiPainter struct {
	gen    generator.ImageGenerator
	client *genai.Client
	model  string
}

// NewGeminiPainter は2系統の生成経路を束ねたペインターを返すのだ。
func NewGeminiPainter(gen generator.ImageGenerator, client *genai.Client, imageModel string) *GeminiPainter {
	return &GeminiPainter{gen: gen, client: client, model: imageModel}
}

// Paint は要求に応じて適切な経路で画像を生成します。絵本は正方形判で
// 固定なので、アスペクト比は常に 1:1 です。
func (p *GeminiPainter) Paint(ctx context.Context, req Request) ([]byte, error) {
	if len(req.Reference) == 0 {
		resp, err := p.gen.GenerateMangaPanel(ctx, imagedom.ImageGenerationRequest{
			Prompt:         req.Prompt,
			NegativePrompt: req.NegativePrompt,
			AspectRatio:    "1:1",
		})
		if err != nil {
			return nil, fmt.Errorf("挿絵の生成に失敗したのだ: %w", err)
		}
		return resp.Data, nil
	}
	return p.paintWithReference(ctx, req)
}

// paintWithReference は参照アバターを同梱してシーンを描かせるのだ。
func (p *GeminiPainter) paintWithReference(ctx context.Context, req Request) ([]byte, error) {
	mime := req.ReferenceMime
	if mime == "" {
		mime = "image/png"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.Reference, mime),
			genai.NewPartFromText(req.Prompt),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("参照付き生成に失敗したのだ: %w", err)
	}
	data, err := firstImage(resp)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// firstImage は応答から最初の画像パートを取り出すのだ。
func firstImage(resp *genai.GenerateContentResponse) ([]byte, error) {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, fmt.Errorf("応答に画像が含まれていなかったのだ")
}
