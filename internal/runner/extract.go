package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// ExtractBookContent は、AIの応答テキストからJSONを取り出してパースするのだ。
// 応答の前後に説明文やMarkdownフェンスが付いていても動くように、最初の
// '{' から最後の '}' までを切り出す。max_tokens で途中で切れた応答は
// repairTruncated で最後の完全なページまで巻き戻して閉じ直す。
func ExtractBookContent(raw string) (*domain.BookContent, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("応答にJSONが見つからなかったのだ")
	}
	jsonStr := raw[start : end+1]

	var content domain.BookContent
	if err := json.Unmarshal([]byte(jsonStr), &content); err == nil {
		return &content, nil
	}

	repaired, ok := repairTruncated(jsonStr)
	if !ok {
		return nil, fmt.Errorf("応答JSONのパースに失敗したのだ")
	}
	if err := json.Unmarshal([]byte(repaired), &content); err != nil {
		return nil, fmt.Errorf("修復後もJSONのパースに失敗したのだ: %w", err)
	}
	return &content, nil
}

// repairTruncated は途中で切れたJSONを最後の完全な要素まで戻し、
// 開いたままの括弧を数えて閉じ直すのだ。
func repairTruncated(jsonStr string) (string, bool) {
	openBraces := strings.Count(jsonStr, "{") - strings.Count(jsonStr, "}")
	openBrackets := strings.Count(jsonStr, "[") - strings.Count(jsonStr, "]")

	last := strings.LastIndex(jsonStr, "},")
	if last < 0 {
		last = strings.LastIndex(jsonStr, "}]")
	}
	if last <= 0 {
		return "", false
	}

	repaired := jsonStr[:last+1]
	if openBrackets > 0 {
		repaired += strings.Repeat("]", openBrackets)
	}
	if openBraces > 0 {
		repaired += strings.Repeat("}", openBraces)
	}
	return repaired, true
}
