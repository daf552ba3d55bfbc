// internal/adapters/out/mail/sendgrid_client.go
package mail

import (
	"context"
	"fmt"
	"html"
	"log"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

const failureCategory = "champion-mint-failure"

// SendGridClient implements FailureMailer.
// 件名・本文（text / HTML）の組み立てと SendGrid のカテゴリ付与をここで行う。
type SendGridClient struct {
	apiKey   string
	from     string
	fromName string
}

var _ FailureMailer = (*SendGridClient)(nil)

func NewSendGridClient(apiKey, from, fromName string) *SendGridClient {
	if strings.TrimSpace(fromName) == "" {
		fromName = "Champion Mint"
	}
	return &SendGridClient{
		apiKey:   strings.TrimSpace(apiKey),
		from:     strings.TrimSpace(from),
		fromName: fromName,
	}
}

// SendFailure sends one failure notification to one operator.
func (c *SendGridClient) SendFailure(ctx context.Context, to string, m FailureMail) error {
	if c.apiKey == "" {
		return fmt.Errorf("sendgrid api key is empty")
	}
	if c.from == "" {
		return fmt.Errorf("from address is empty")
	}
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("to address is empty")
	}

	message := c.failureMessage(to, m)
	response, err := sendgrid.NewSendClient(c.apiKey).SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		log.Printf("[sendgrid] error status=%d winner=%s body=%s", response.StatusCode, m.WinnerID, response.Body)
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	log.Printf("[sendgrid] failure mail sent status=%d to=%s winner=%s disposition=%s",
		response.StatusCode, to, m.WinnerID, m.Disposition)
	return nil
}

// failureMessage は 1 宛先分の v3 メッセージを組み立てる。
// winner_id は custom arg に入るので SendGrid の Activity から辿れる。
func (c *SendGridClient) failureMessage(to string, m FailureMail) *mail.SGMailV3 {
	subject := failureSubject(m)

	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(c.fromName, c.from))
	msg.Subject = subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", strings.TrimSpace(to)))
	p.SetCustomArg("winner_id", m.WinnerID)
	msg.AddPersonalizations(p)

	categories := []string{failureCategory}
	if m.Disposition != mintdom.DispositionNone {
		categories = append(categories, string(m.Disposition))
	}
	msg.AddCategories(categories...)

	rows := failureRows(m)
	msg.AddContent(
		mail.NewContent("text/plain", failureText(rows, m.RetryHint)),
		mail.NewContent("text/html", failureHTML(rows, m.RetryHint)),
	)
	return msg
}

func failureSubject(m FailureMail) string {
	tag := "要確認"
	if m.Disposition == mintdom.DispositionRetryLater {
		tag = "再試行待ち"
	}
	return fmt.Sprintf("[Champion Mint] %s: %s (%s)", tag, m.DisplayName, m.WinnerID)
}

type row struct{ label, value string }

func failureRows(m FailureMail) []row {
	rows := []row{
		{"winner_id", m.WinnerID},
		{"tournament_id", m.TournamentID},
		{"team_id", m.TeamID},
		{"recipient", m.Recipient},
		{"attempts", fmt.Sprintf("%d", m.Attempts)},
		{"disposition", string(m.Disposition)},
	}
	optional := []row{
		{"error", m.Cause},
		{"image_uri", m.ImageURI},
		{"metadata_uri", m.MetadataURI},
		{"pending_tx", m.PendingSignature},
	}
	for _, r := range optional {
		if r.value != "" {
			rows = append(rows, r)
		}
	}
	return rows
}

func failureText(rows []row, retryHint string) string {
	var b strings.Builder
	b.WriteString("Champion NFT の発行に失敗しました。\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-14s: %s\n", r.label, r.value)
	}
	if retryHint != "" {
		fmt.Fprintf(&b, "\n再実行: %s\n", retryHint)
	}
	return b.String()
}

func failureHTML(rows []row, retryHint string) string {
	var b strings.Builder
	b.WriteString("<p>Champion NFT の発行に失敗しました。</p>\n<table>\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "<tr><th align=\"left\">%s</th><td><code>%s</code></td></tr>\n",
			html.EscapeString(r.label), html.EscapeString(r.value))
	}
	b.WriteString("</table>\n")
	if retryHint != "" {
		fmt.Fprintf(&b, "<p>再実行: <code>%s</code></p>\n", html.EscapeString(retryHint))
	}
	return b.String()
}
