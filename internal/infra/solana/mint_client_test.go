package solana

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

type fakeRPC struct {
	sent      []types.Transaction
	sendErr   error
	status    *rpc.SignatureStatus
	statusCfg client.GetSignatureStatusesConfig
	valid     bool
	blockhash string
	blockErr  error
}

func (f *fakeRPC) GetMinimumBalanceForRentExemption(context.Context, uint64) (uint64, error) {
	return 1461600, nil
}

func (f *fakeRPC) GetLatestBlockhash(context.Context) (rpc.GetLatestBlockhashValue, error) {
	if f.blockErr != nil {
		return rpc.GetLatestBlockhashValue{}, f.blockErr
	}
	return rpc.GetLatestBlockhashValue{Blockhash: f.blockhash, LatestValidBlockHeight: 100}, nil
}

func (f *fakeRPC) SendTransaction(_ context.Context, tx types.Transaction) (string, error) {
	f.sent = append(f.sent, tx)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return base58.Encode(tx.Signatures[0]), nil
}

func (f *fakeRPC) GetSignatureStatusWithConfig(_ context.Context, _ string, cfg client.GetSignatureStatusesConfig) (*rpc.SignatureStatus, error) {
	f.statusCfg = cfg
	return f.status, nil
}

func (f *fakeRPC) IsBlockhashValid(context.Context, string) (bool, error) {
	return f.valid, nil
}

func newTestClient(t *testing.T, f *fakeRPC) *MintClient {
	t.Helper()
	if f.blockhash == "" {
		f.blockhash = types.NewAccount().PublicKey.ToBase58()
	}
	c, err := newMintClient(f, &MintAuthority{Account: types.NewAccount()})
	if err != nil {
		t.Fatalf("newMintClient() error = %v", err)
	}
	return c
}

func mintRequest() mintdom.MintRequest {
	return mintdom.MintRequest{
		WinnerID:         "w1",
		MetadataURI:      "https://gateway.irys.xyz/meta",
		Name:             "Spring Cup Champion - April 2026",
		Symbol:           "CHAMP",
		RecipientAddress: types.NewAccount().PublicKey.ToBase58(),
	}
}

func TestPrepareMint_SignedButNotSent(t *testing.T) {
	f := &fakeRPC{}
	c := newTestClient(t, f)

	p, err := c.PrepareMint(context.Background(), mintRequest())
	if err != nil {
		t.Fatalf("PrepareMint() error = %v", err)
	}
	if len(f.sent) != 0 {
		t.Fatalf("PrepareMint must not send, sent=%d", len(f.sent))
	}
	if p.TokenID == "" || p.Signature == "" || len(p.RawTx) == 0 || p.Blockhash != f.blockhash {
		t.Fatalf("pending = %+v", p)
	}

	tx, err := types.TransactionDeserialize(p.RawTx)
	if err != nil {
		t.Fatalf("TransactionDeserialize() error = %v", err)
	}
	if got := base58.Encode(tx.Signatures[0]); got != p.Signature {
		t.Errorf("signature = %s, want %s", got, p.Signature)
	}
}

func TestPrepareMint_InvalidRecipient(t *testing.T) {
	f := &fakeRPC{}
	req := mintRequest()
	req.RecipientAddress = "not-a-wallet"

	_, err := newTestClient(t, f).PrepareMint(context.Background(), req)
	var ir *mintdom.InvalidRecipientError
	if !errors.As(err, &ir) {
		t.Fatalf("PrepareMint() error = %v, want InvalidRecipientError", err)
	}
}

func TestPrepareMint_BlockhashErrorIsTransient(t *testing.T) {
	f := &fakeRPC{blockErr: errors.New("connection reset")}
	_, err := newTestClient(t, f).PrepareMint(context.Background(), mintRequest())
	if !mintdom.IsRetryable(err) {
		t.Errorf("error = %v, want retryable", err)
	}
}

func TestSubmitMint_ResendsIdenticalBytes(t *testing.T) {
	f := &fakeRPC{}
	c := newTestClient(t, f)
	p, err := c.PrepareMint(context.Background(), mintRequest())
	if err != nil {
		t.Fatalf("PrepareMint() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := c.SubmitMint(context.Background(), p); err != nil {
			t.Fatalf("SubmitMint() error = %v", err)
		}
	}
	if len(f.sent) != 2 {
		t.Fatalf("sent = %d", len(f.sent))
	}
	for _, tx := range f.sent {
		if base58.Encode(tx.Signatures[0]) != p.Signature {
			t.Errorf("resend changed signature")
		}
	}
}

func TestSubmitMint_AlreadyProcessedIsSuccess(t *testing.T) {
	f := &fakeRPC{sendErr: errors.New("rpc error: This transaction has already been processed")}
	c := newTestClient(t, f)
	p, _ := c.PrepareMint(context.Background(), mintRequest())

	if err := c.SubmitMint(context.Background(), p); err != nil {
		t.Errorf("SubmitMint() error = %v, want nil", err)
	}
}

func TestClassifySendError(t *testing.T) {
	tests := []struct {
		msg      string
		rejected bool
	}{
		{"Transaction simulation failed: Attempt to debit an account but found no record of a prior credit. insufficient funds", true},
		{"Transaction simulation failed: Error processing Instruction 2: custom program error: 0x0", true},
		{"Transaction simulation failed: Blockhash not found", false},
		{"Post \"https://api.devnet.solana.com\": dial tcp: i/o timeout", false},
		{"429 Too Many Requests", false},
	}
	for _, tt := range tests {
		err := classifySendError("sig", errors.New(tt.msg))
		var rej *mintdom.RejectedTransactionError
		if errors.As(err, &rej) != tt.rejected {
			t.Errorf("classify(%q) = %T, rejected want %v", tt.msg, err, tt.rejected)
		}
		if !tt.rejected && !mintdom.IsRetryable(err) {
			t.Errorf("classify(%q) should be retryable", tt.msg)
		}
	}
}

func TestSignatureStatus_Mapping(t *testing.T) {
	confirmed := rpc.CommitmentConfirmed
	finalized := rpc.CommitmentFinalized
	processed := rpc.CommitmentProcessed

	tests := []struct {
		name string
		in   *rpc.SignatureStatus
		want mintdom.ChainStatus
	}{
		{"unknown", nil, mintdom.StatusNotFound},
		{"processed", &rpc.SignatureStatus{ConfirmationStatus: &processed}, mintdom.StatusPending},
		{"confirmed", &rpc.SignatureStatus{ConfirmationStatus: &confirmed}, mintdom.StatusConfirmed},
		{"finalized", &rpc.SignatureStatus{ConfirmationStatus: &finalized}, mintdom.StatusConfirmed},
		{"errored", &rpc.SignatureStatus{ConfirmationStatus: &finalized, Err: map[string]any{"InstructionError": []any{2, "x"}}}, mintdom.StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRPC{status: tt.in}
			got, err := newTestClient(t, f).SignatureStatus(context.Background(), "sig")
			if err != nil {
				t.Fatalf("SignatureStatus() error = %v", err)
			}
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s", got.Status, tt.want)
			}
			if !f.statusCfg.SearchTransactionHistory {
				t.Error("status lookup must search transaction history")
			}
		})
	}
}

func TestClampUTF8(t *testing.T) {
	if got := clampUTF8("short", 32); got != "short" {
		t.Errorf("clampUTF8 = %q", got)
	}
	long := strings.Repeat("あ", 20) // 60 bytes
	got := clampUTF8(long, maxNameLen)
	if len(got) > maxNameLen || len(got)%3 != 0 {
		t.Errorf("clampUTF8 cut inside a rune: %d bytes", len(got))
	}
}

func TestValidateAddress(t *testing.T) {
	good := types.NewAccount().PublicKey.ToBase58()
	if err := ValidateAddress(good); err != nil {
		t.Errorf("ValidateAddress(%s) error = %v", good, err)
	}
	for _, bad := range []string{"", " " + good, "0OIl", "abc", good + good} {
		if err := ValidateAddress(bad); err == nil {
			t.Errorf("ValidateAddress(%q) = nil, want error", bad)
		}
	}
}

func TestKeypairJSON_RoundTrip(t *testing.T) {
	acc := types.NewAccount()
	data, err := EncodeKeypairJSON(acc)
	if err != nil {
		t.Fatalf("EncodeKeypairJSON() error = %v", err)
	}
	if !strings.HasPrefix(string(data), "[") {
		t.Fatalf("keypair json = %s", data)
	}
	got, err := AccountFromKeypairJSON(data)
	if err != nil {
		t.Fatalf("AccountFromKeypairJSON() error = %v", err)
	}
	if got.PublicKey != acc.PublicKey {
		t.Errorf("pubkey = %s, want %s", got.PublicKey.ToBase58(), acc.PublicKey.ToBase58())
	}

	if _, err := AccountFromKeypairJSON([]byte(`[1,2,3]`)); err == nil {
		t.Error("short keypair should fail")
	}
}
