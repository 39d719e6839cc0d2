package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shouni/go-ehon-kit/pkg/domain"
)

// PromptLogEntry は挿絵1枚分の生成記録なのだ。prompts_log.json に追記される。
type PromptLogEntry struct {
	Page           domain.PageID `json:"page"`
	Prompt         string        `json:"prompt"`
	OriginalPrompt string        `json:"original_prompt"`
	Success        bool          `json:"success"`
	Timestamp      string        `json:"timestamp"`
	DurationSec    float64       `json:"duration_s"`
	UsedReference  bool          `json:"used_reference"`
	Retry          bool          `json:"retry,omitempty"`
}

// PromptLog は生成プロンプトの追記型ログです。並列生成から書かれるため
// 追記はミューテックスで直列化します。
type PromptLog struct {
	mu      sync.Mutex
	path    string
	entries []PromptLogEntry
}

// OpenPromptLog は既存ログを読み込むか、無ければ空のログを返します。
func OpenPromptLog(path string) (*PromptLog, error) {
	pl := &PromptLog{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return pl, nil
		}
		return nil, fmt.Errorf("プロンプトログの読み込みに失敗したのだ: %w", err)
	}
	if err := json.Unmarshal(data, &pl.entries); err != nil {
		return nil, fmt.Errorf("プロンプトログのデコードに失敗したのだ: %w", err)
	}
	return pl, nil
}

// Append は1件追記するのだ。
func (pl *PromptLog) Append(entry PromptLogEntry) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().Format("2006-01-02 15:04:05")
	}
	pl.entries = append(pl.entries, entry)
}

// Save はログをファイルに書き出すのだ。
func (pl *PromptLog) Save() error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	data, err := json.MarshalIndent(pl.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("プロンプトログのエンコードに失敗したのだ: %w", err)
	}
	if err := os.WriteFile(pl.path, data, 0o644); err != nil {
		return fmt.Errorf("プロンプトログの保存に失敗したのだ: %w", err)
	}
	return nil
}

// Len は記録済み件数を返します。
func (pl *PromptLog) Len() int {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return len(pl.entries)
}
