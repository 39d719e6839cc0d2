package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// FindPage は識別子に一致するページを返します。見つからない場合は nil です。
func (c *BookContent) FindPage(id PageID) *Page {
	for i := range c.Pages {
		if c.Pages[i].ID == id {
			return &c.Pages[i]
		}
	}
	return nil
}

// IllustratedPages は画像生成の対象ページを正規の生成順
// （表紙→裏表紙→ページ番号順）で返します。
func (c *BookContent) IllustratedPages() []Page {
	var pages []Page
	for _, p := range c.Pages {
		if p.IsIllustrated() {
			pages = append(pages, p)
		}
	}
	SortPages(pages)
	return pages
}

// SortPages はページ群を正規順に並べ替えます。
func SortPages(pages []Page) {
	sort.SliceStable(pages, func(i, j int) bool {
		gi, ni := pages[i].ID.SortKey()
		gj, nj := pages[j].ID.SortKey()
		if gi != gj {
			return gi < gj
		}
		return ni < nj
	})
}

// ExpectedPageIDs は本の固定構成で必ず存在すべきページ識別子を返します。
// 表紙2枚＋献辞（2）＋導入挿絵（3）〜最終挿絵（29）です。
// 問いかけページ（30）はオプションなので含みません。
func ExpectedPageIDs() []PageID {
	ids := []PageID{CoverFront, CoverBack}
	for n := 2; n <= 29; n++ {
		ids = append(ids, PageID(strconv.Itoa(n)))
	}
	return ids
}

// Validate は生成内容が本の固定構成を満たしているか検査し、
// 欠落や矛盾を人間可読なメッセージの一覧として返します。
// 欠落があっても致命的とは限らないため、エラーではなく警告として扱います。
func (c *BookContent) Validate() []string {
	var problems []string
	if c.Title == "" {
		problems = append(problems, "タイトルがありません")
	}
	if len(c.Pages) == 0 {
		problems = append(problems, "ページがありません")
		return problems
	}

	present := make(map[PageID]bool, len(c.Pages))
	for _, p := range c.Pages {
		present[p.ID] = true
	}
	for _, id := range ExpectedPageIDs() {
		if !present[id] {
			problems = append(problems, fmt.Sprintf("ページ %s がありません", id))
		}
	}

	for _, p := range c.Pages {
		if p.IsIllustrated() && p.ImagePrompt == "" {
			problems = append(problems, fmt.Sprintf("ページ %s に image_prompt がありません", p.ID))
		}
		if p.Type == PageTypeText && p.Text == "" {
			problems = append(problems, fmt.Sprintf("ページ %s に本文がありません", p.ID))
		}
	}
	return problems
}

// LoadBookContent は book_content.json を読み込みます。
func LoadBookContent(path string) (*BookContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("生成済みコンテンツの読み込みに失敗したのだ: %w", err)
	}
	var content BookContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("book_content.json のデコードに失敗したのだ: %w", err)
	}
	return &content, nil
}
