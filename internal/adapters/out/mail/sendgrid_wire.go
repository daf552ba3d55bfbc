// internal/adapters/out/mail/sendgrid_wire.go
package mail

import (
	"log"
	"strings"
)

// NewFailureNotifierWithSendGrid は SendGrid を使った FailureNotifier を生成します。
// apiKey か recipients が空なら nil（通知なし）を返す。
func NewFailureNotifierWithSendGrid(apiKey, from, fromName string, recipients []string, baseURL string) *FailureNotifier {
	if strings.TrimSpace(apiKey) == "" {
		log.Printf("[mail] INFO: SENDGRID_API_KEY is empty. failure notifications disabled.")
		return nil
	}
	if len(recipients) == 0 {
		log.Printf("[mail] INFO: OPERATOR_EMAILS is empty. failure notifications disabled.")
		return nil
	}
	if strings.TrimSpace(from) == "" {
		log.Printf("[mail] WARN: SENDGRID_FROM is empty. FailureNotifier will fail to send mail.")
	}

	n := NewFailureNotifier(NewSendGridClient(apiKey, from, fromName), recipients, baseURL)
	log.Printf("[mail] FailureNotifier initialized. from=%s recipients=%d", from, len(n.recipients))
	return n
}
