package publisher

import "strings"

// Measurer は現在のフォントでの文字列幅（pt）を返す関数です。
// PDF本体から切り離してあるので、テストでは固定幅のフェイクを使えます。
type Measurer func(text string) (float64, error)

// wrapText は本文を行幅に収まるよう単語単位で折り返すのだ。
// 改行は段落区切りとして尊重し、空行も1行として残す。
func wrapText(text string, measure Measurer, maxWidth float64) ([]string, error) {
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			w, err := measure(candidate)
			if err != nil {
				return nil, err
			}
			if w <= maxWidth {
				current = candidate
				continue
			}
			if current != "" {
				lines = append(lines, current)
			}
			current = word
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines, nil
}
