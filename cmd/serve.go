package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shouni/go-ehon-kit/internal/server"

	"github.com/spf13/cobra"
)

// serveCmd は、ブラウザから絵本を作れるWeb UIを起動するのだ。
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "絵本作成のWeb UIを起動するのだ。",
	Long: `フォーム入力、写真アップロード、進捗表示、ギャラリー、PDFダウンロード、
1ページ再生成までをブラウザで完結できるローカルWebサーバーなのだ。`,
	Example: `  # 既定のポート8080で起動
  go-ehon-kit serve

  # ポートを変えて起動
  go-ehon-kit serve --port 3000`,
	RunE: serveCommand,
}

func serveCommand(cmd *cobra.Command, args []string) error {
	cfg := loadRuntimeConfig()
	handler := server.New(cfg, ".")

	addr := fmt.Sprintf(":%d", cfg.Options.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler.Routes(),
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("Web UIを起動したのだ", "addr", addr, "url", "http://localhost"+addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-cmd.Context().Done():
		slog.Info("サーバーを停止するのだ...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("サーバーの停止に失敗したのだ", "error", err)
			return err
		}
		slog.Info("サーバーを停止したのだ")
		return nil
	case err := <-serverErr:
		return err
	}
}
