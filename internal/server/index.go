package server

import (
	_ "embed"
	"log/slog"
	"net/http"
)

//go:embed index.html
var indexHTML []byte

// HandleIndex は埋め込みの1ページUIを返すのだ。
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(indexHTML); err != nil {
		slog.Error("トップページの応答に失敗したのだ", "error", err)
	}
}
