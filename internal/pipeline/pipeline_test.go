package pipeline

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/shouni/go-ehon-kit/internal/progress"
)

func TestFinishRegenerate(t *testing.T) {
	t.Run("avatarsフェーズのままにならず完了が書き込まれること", func(t *testing.T) {
		statusPath := filepath.Join(t.TempDir(), "status.json")
		tracker := progress.NewTracker(statusPath)

		// 再生成はアバター準備で avatars フェーズを書き込む
		if err := tracker.Set(progress.PhaseAvatars, "写真を解析してアバターを生成中"); err != nil {
			t.Fatal(err)
		}

		if err := finishRegenerate(tracker, "5"); err != nil {
			t.Fatal(err)
		}

		status, err := progress.Load(statusPath)
		if err != nil {
			t.Fatal(err)
		}
		if status.Phase != progress.PhaseDone {
			t.Errorf("フェーズは done のはずなのだ: %s", status.Phase)
		}
		if !status.Done {
			t.Error("done フラグが立っていないのだ")
		}
		if !strings.Contains(status.Message, "5") {
			t.Errorf("メッセージに対象ページが無いのだ: %s", status.Message)
		}
	})
}
