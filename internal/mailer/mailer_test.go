package mailer

import (
	"strings"
	"testing"

	"github.com/shouni/go-ehon-kit/internal/config"
)

func TestSender_Configured(t *testing.T) {
	cfg := &config.Config{}
	if NewSender(cfg).Configured() {
		t.Error("未設定なのに Configured が真なのだ")
	}
	cfg.SMTPHost = "smtp.example.com"
	cfg.SMTPFrom = "livres@example.com"
	if !NewSender(cfg).Configured() {
		t.Error("設定済みなのに Configured が偽なのだ")
	}
}

func TestBuildBody(t *testing.T) {
	t.Run("添付ありの本文", func(t *testing.T) {
		body := buildBody("Emma et la mer", "Emma", 12, true)
		if !strings.Contains(body, "pièce jointe") || !strings.Contains(body, "12 Mo") {
			t.Errorf("添付案内が本文にないのだ: %s", body)
		}
	})

	t.Run("容量超過時はダウンロード案内になること", func(t *testing.T) {
		body := buildBody("Emma et la mer", "Emma", 42, false)
		if !strings.Contains(body, "trop volumineux") {
			t.Errorf("容量超過の案内がないのだ: %s", body)
		}
		if strings.Contains(body, "pièce jointe (") {
			t.Error("添付案内が残っているのだ")
		}
	})
}
