// Package progress は生成の進捗を status.json に書き出すパッケージです。
// Web UI はこのファイルをポーリングして進行状況を表示します。
package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// フェーズの定義なのだ。UIの表示順と対応する。
const (
	PhaseIdle    = "idle"
	PhaseText    = "text"
	PhaseAvatars = "avatars"
	PhaseImages  = "images"
	PhasePDF     = "pdf"
	PhaseEmail   = "email"
	PhaseDone    = "done"
	PhaseError   = "error"
)

// Status は status.json の1スナップショットです。
type Status struct {
	Phase       string `json:"phase"`
	Message     string `json:"message"`
	ImagesDone  int    `json:"images_done"`
	ImagesTotal int    `json:"images_total"`
	Error       string `json:"error,omitempty"`
	Done        bool   `json:"done"`
	UpdatedAt   string `json:"updated_at"`
}

// Tracker は進捗ファイルへの書き込みを直列化するのだ。
// 画像生成は並列に走るため、更新はミューテックスで守る。
type Tracker struct {
	mu   sync.Mutex
	path string
	cur  Status
}

// NewTracker は指定パスに書き出すトラッカーを返します。
func NewTracker(path string) *Tracker {
	return &Tracker{path: path}
}

// Set はフェーズとメッセージを更新して書き出すのだ。
func (t *Tracker) Set(phase, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Phase = phase
	t.cur.Message = message
	t.cur.Done = phase == PhaseDone
	if phase != PhaseError {
		t.cur.Error = ""
	}
	return t.flush()
}

// SetImageProgress は画像生成の完了数を更新するのだ。
func (t *Tracker) SetImageProgress(done, total int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Phase = PhaseImages
	t.cur.Message = fmt.Sprintf("挿絵を生成中 (%d/%d)", done, total)
	t.cur.ImagesDone = done
	t.cur.ImagesTotal = total
	return t.flush()
}

// Fail はエラー状態を記録するのだ。
func (t *Tracker) Fail(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cur.Phase = PhaseError
	t.cur.Error = err.Error()
	t.cur.Done = false
	return t.flush()
}

func (t *Tracker) flush() error {
	t.cur.UpdatedAt = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(t.cur, "", "  ")
	if err != nil {
		return fmt.Errorf("進捗のエンコードに失敗したのだ: %w", err)
	}
	if err := os.WriteFile(t.path, data, 0o644); err != nil {
		return fmt.Errorf("進捗の書き込みに失敗したのだ: %w", err)
	}
	return nil
}

// Load は status.json を読み込みます。ファイルが無ければ idle 状態を返します。
func Load(path string) (*Status, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Status{Phase: PhaseIdle}, nil
		}
		return nil, fmt.Errorf("進捗ファイルの読み込みに失敗したのだ: %w", err)
	}
	var s Status
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("進捗ファイルのデコードに失敗したのだ: %w", err)
	}
	return &s, nil
}
