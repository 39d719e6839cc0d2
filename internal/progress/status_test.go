package progress

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestTracker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	tr := NewTracker(path)

	t.Run("画像進捗が読み戻せること", func(t *testing.T) {
		if err := tr.SetImageProgress(3, 16); err != nil {
			t.Fatal(err)
		}
		s, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if s.Phase != PhaseImages || s.ImagesDone != 3 || s.ImagesTotal != 16 {
			t.Errorf("進捗が一致しないのだ: %+v", s)
		}
	})

	t.Run("エラー状態が記録されること", func(t *testing.T) {
		if err := tr.Fail(errors.New("生成失敗")); err != nil {
			t.Fatal(err)
		}
		s, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if s.Phase != PhaseError || s.Error != "生成失敗" {
			t.Errorf("エラー状態が一致しないのだ: %+v", s)
		}
	})

	t.Run("完了フェーズで done が立つこと", func(t *testing.T) {
		if err := tr.Set(PhaseDone, "完成"); err != nil {
			t.Fatal(err)
		}
		s, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if !s.Done || s.Error != "" {
			t.Errorf("完了状態が正しくないのだ: %+v", s)
		}
	})
}

func TestLoad_Missing(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("欠落ファイルはエラーにしないのだ: %v", err)
	}
	if s.Phase != PhaseIdle {
		t.Errorf("初期状態は idle のはずなのだ: %s", s.Phase)
	}
}
