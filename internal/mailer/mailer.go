// Package mailer は完成した絵本PDFのメール送付を担当するパッケージです。
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/wneessen/go-mail"

	"github.com/shouni/go-ehon-kit/internal/config"
)

// MaxAttachmentBytes は添付の上限なのだ。多くのメールプロバイダの
// 受信上限に合わせて20MBにしている。超える場合は本文のみ送る。
const MaxAttachmentBytes = 20 * 1024 * 1024

// Sender はSMTP経由で完成通知を送るのだ。
type Sender struct {
	cfg *config.Config
}

// NewSender は Sender の新しいインスタンスを返すのだ。
func NewSender(cfg *config.Config) *Sender {
	return &Sender{cfg: cfg}
}

// Configured はSMTP設定が揃っているかを返します。未設定なら送付はスキップされます。
func (s *Sender) Configured() bool {
	return s.cfg.SMTPHost != "" && s.cfg.SMTPFrom != ""
}

// SendBook は完成した絵本の通知メールを送るのだ。
// PDFが上限以下なら添付し、超える場合はダウンロード案内に切り替える。
func (s *Sender) SendBook(ctx context.Context, pdfPath, bookTitle, childName, recipient string) error {
	if !s.Configured() {
		return fmt.Errorf("SMTP設定（SMTP_HOST / SMTP_FROM）が未設定なのだ")
	}

	info, err := os.Stat(pdfPath)
	if err != nil {
		return fmt.Errorf("送付対象のPDFが見つからないのだ: %w", err)
	}
	attach := info.Size() <= MaxAttachmentBytes
	sizeMB := float64(info.Size()) / (1024 * 1024)

	msg := mail.NewMsg()
	if err := msg.From(s.cfg.SMTPFrom); err != nil {
		return fmt.Errorf("差出人の設定に失敗したのだ: %w", err)
	}
	if err := msg.To(recipient); err != nil {
		return fmt.Errorf("宛先の設定に失敗したのだ: %w", err)
	}
	msg.Subject(fmt.Sprintf("Livre de %s : \"%s\" est prêt !", childName, bookTitle))
	msg.SetBodyString(mail.TypeTextPlain, buildBody(bookTitle, childName, sizeMB, attach))

	if attach {
		msg.AttachFile(pdfPath, mail.WithFileName(filepath.Base(pdfPath)))
	} else {
		slog.Warn("PDFが大きすぎるため添付せずに送るのだ", "size_mb", fmt.Sprintf("%.0f", sizeMB))
	}

	client, err := mail.NewClient(s.cfg.SMTPHost,
		mail.WithPort(s.cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.SMTPUser),
		mail.WithPassword(s.cfg.SMTPPassword),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return fmt.Errorf("SMTPクライアントの初期化に失敗したのだ: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("メール送信に失敗したのだ: %w", err)
	}
	slog.Info("完成通知メールを送ったのだ", "to", recipient, "attached", attach)
	return nil
}

// buildBody は通知メールの本文を組み立てるのだ。受取人向けなのでフランス語。
func buildBody(bookTitle, childName string, sizeMB float64, attached bool) string {
	if attached {
		return fmt.Sprintf(
			"Bonjour,\n\n"+
				"Le livre personnalisé \"%s\" pour %s est terminé !\n\n"+
				"Vous trouverez le PDF en pièce jointe (%.0f Mo), "+
				"prêt à imprimer en 21x21cm à 300dpi.\n\n"+
				"Bonne lecture !\n",
			bookTitle, childName, sizeMB)
	}
	return fmt.Sprintf(
		"Bonjour,\n\n"+
			"Le livre personnalisé \"%s\" pour %s est terminé !\n\n"+
			"Le PDF fait %.0f Mo (trop volumineux pour une pièce jointe email).\n"+
			"Rendez-vous sur l'application web pour le télécharger.\n\n"+
			"Bonne lecture !\n",
		bookTitle, childName, sizeMB)
}
