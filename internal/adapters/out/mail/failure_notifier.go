// internal/adapters/out/mail/failure_notifier.go
package mail

import (
	"context"
	"fmt"
	"strings"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// FailureMail は運用者向け失敗通知 1 通分の内容。
// 件名・本文への整形は送信クライアント側で行う。
type FailureMail struct {
	WinnerID         string
	DisplayName      string
	TournamentID     string
	TeamID           string
	Recipient        string
	Attempts         int
	Disposition      mintdom.Disposition
	Cause            string
	ImageURI         string
	MetadataURI      string
	PendingSignature string
	RetryHint        string
}

// FailureMailer sends one FailureMail to one operator address.
type FailureMailer interface {
	SendFailure(ctx context.Context, to string, m FailureMail) error
}

// FailureNotifier は mint 失敗を運用者にメールで知らせる。
// application/mint.FailureNotifier を実装する。
type FailureNotifier struct {
	mailer     FailureMailer
	recipients []string
	baseURL    string // 例: "https://champions.example.com"（空なら CLI の再実行コマンドを案内）
}

func NewFailureNotifier(mailer FailureMailer, recipients []string, baseURL string) *FailureNotifier {
	to := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			to = append(to, r)
		}
	}
	return &FailureNotifier{
		mailer:     mailer,
		recipients: to,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
	}
}

func (n *FailureNotifier) NotifyFailure(ctx context.Context, rec windom.WinnerRecord, cause error) error {
	if n == nil || n.mailer == nil || len(n.recipients) == 0 {
		return nil
	}

	m := n.failureMail(rec, cause)

	var errs []string
	for _, to := range n.recipients {
		if err := n.mailer.SendFailure(ctx, to, m); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", to, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify failure: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (n *FailureNotifier) failureMail(rec windom.WinnerRecord, cause error) FailureMail {
	m := FailureMail{
		WinnerID:     rec.WinnerID,
		DisplayName:  rec.DisplayName,
		TournamentID: rec.TournamentID,
		TeamID:       rec.TeamID,
		Recipient:    rec.RecipientWalletAddress,
		Attempts:     rec.AttemptCount,
		Disposition:  mintdom.DispositionOf(cause),
		ImageURI:     rec.ImageURI,
		MetadataURI:  rec.MetadataURI,
	}
	if cause != nil {
		m.Cause = cause.Error()
	}
	if rec.Pending != nil {
		m.PendingSignature = rec.Pending.Signature
	}
	if n.baseURL != "" {
		m.RetryHint = fmt.Sprintf("POST %s/winners/%s/retry", n.baseURL, rec.WinnerID)
	} else {
		m.RetryHint = "champion retry " + rec.WinnerID
	}
	return m
}
