package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ページ種別の定義です。AIの応答JSONの type フィールドに対応します。
const (
	PageTypeImage        = "image"          // 挿絵のみのページ
	PageTypeText         = "text"           // 本文のみのページ
	PageTypeImageAndText = "image_and_text" // 裏表紙（画像＋紹介文）
	PageTypeDedication   = "dedication"     // 献辞ページ
	PageTypeQuestions    = "questions"      // 巻末の問いかけページ
)

// 表紙スロットの識別子です。番号付きページと同じ PageID 空間に属します。
const (
	CoverFront PageID = "cover_front"
	CoverBack  PageID = "cover_back"
)

// PageID はページの識別子です。本文ページは番号（"2".."30"）、
// 表紙は cover_front / cover_back という名前付きスロットで表されます。
// AIの応答JSONでは数値と文字列が混在するため、両対応のコーデックを持ちます。
type PageID string

// UnmarshalJSON は数値・文字列どちらの表現も受け付けるのだ。
func (p *PageID) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*p = PageID(strconv.Itoa(n))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("ページ識別子の形式が不正です: %s", string(data))
	}
	*p = PageID(s)
	return nil
}

// MarshalJSON は番号ページを数値として書き戻し、元のJSON表現を保ちます。
func (p PageID) MarshalJSON() ([]byte, error) {
	if n, ok := p.Number(); ok {
		return json.Marshal(n)
	}
	return json.Marshal(string(p))
}

// Number はページ番号と、番号付きページかどうかを返します。
func (p PageID) Number() (int, bool) {
	n, err := strconv.Atoi(string(p))
	return n, err == nil
}

// IsCover は表紙スロットかどうかを返します。
func (p PageID) IsCover() bool {
	return p == CoverFront || p == CoverBack
}

// Filename はこのページの画像ファイル名を返します。
// 例: cover_front.png / page_07.png
func (p PageID) Filename() string {
	if n, ok := p.Number(); ok {
		return fmt.Sprintf("page_%02d.png", n)
	}
	return string(p) + ".png"
}

// SortKey は表紙→裏表紙→番号順という正規の生成順を定めるキーを返します。
func (p PageID) SortKey() (int, int) {
	switch p {
	case CoverFront:
		return 0, 0
	case CoverBack:
		return 1, 0
	default:
		n, _ := p.Number()
		return 2, n
	}
}

func (p PageID) String() string {
	return string(p)
}

// Page は絵本の1ページ分の生成内容です。Type によって有効なフィールドが変わります。
type Page struct {
	ID            PageID   `json:"page"`
	Type          string   `json:"type"`
	Text          string   `json:"text,omitempty"`
	ImagePrompt   string   `json:"image_prompt,omitempty"`
	BackCoverText string   `json:"back_cover_text,omitempty"`
	Questions     []string `json:"questions,omitempty"`
}

// IsIllustrated は画像生成の対象ページかどうかを返します。
func (p Page) IsIllustrated() bool {
	return p.Type == PageTypeImage || p.Type == PageTypeImageAndText
}

// ColorPalette はAIが決定した本全体の配色です。
// 各値は "#hex — 説明" という形式で返ってくるため、Hex系ヘルパーで
// 色コード部分のみを取り出して使います。
type ColorPalette struct {
	Dominant           string `json:"dominant"`
	Secondary          string `json:"secondary"`
	Accent             string `json:"accent"`
	CoverBackColor     string `json:"cover_back_color"`
	TextPageBackground string `json:"text_page_background"`
}

// DefaultTextBackground は text_page_background 欠落時の温かいクリーム色です。
const DefaultTextBackground = "#FFF8F0"

// TextBackgroundHex は本文ページ背景の色コードを返します。
// 形式が崩れている場合はデフォルト色に倒します。
func (cp ColorPalette) TextBackgroundHex() string {
	return hexOnly(cp.TextPageBackground, DefaultTextBackground)
}

// hexOnly は "#hex — 説明" 形式から先頭の色コードのみを抽出するのだ。
func hexOnly(value, fallback string) string {
	v := strings.TrimSpace(value)
	if i := strings.IndexAny(v, " —"); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSpace(v)
	if !strings.HasPrefix(v, "#") || (len(v) != 4 && len(v) != 7) {
		return fallback
	}
	return v
}

// CharacterSheets は挿絵プロンプトに注入されるキャラクターの詳細設定です。
type CharacterSheets struct {
	Hero      string            `json:"hero"`
	Secondary map[string]string `json:"secondary,omitempty"`
}

// BookContent はテキスト生成APIから返される絵本一冊分の構造です。
type BookContent struct {
	Title           string          `json:"title"`
	CharacterSheets CharacterSheets `json:"character_sheets"`
	ColorPalette    ColorPalette    `json:"color_palette"`
	Pages           []Page          `json:"pages"`
}
