// internal/infra/solana/mint_client.go
package solana

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/rpc"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
	windom "github.com/aaruvan/tokenchamp/internal/domain/winner"
)

// rpcAPI は *client.Client のうち mint で使う部分。
type rpcAPI interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, dataLen uint64) (uint64, error)
	GetLatestBlockhash(ctx context.Context) (rpc.GetLatestBlockhashValue, error)
	SendTransaction(ctx context.Context, tx types.Transaction) (string, error)
	GetSignatureStatusWithConfig(ctx context.Context, signature string, cfg client.GetSignatureStatusesConfig) (*rpc.SignatureStatus, error)
	IsBlockhashValid(ctx context.Context, blockhash string) (bool, error)
}

// MintClient は mint authority ウォレットで Champion NFT を発行するチェーンクライアント。
// application/mint.ChainClient を実装する。
type MintClient struct {
	rpc        rpcAPI
	authority  *MintAuthority
	newAccount func() types.Account
	now        func() time.Time
}

// NewMintClient は rpcURL に接続する MintClient を返す。rpcURL が空なら devnet。
func NewMintClient(rpcURL string, authority *MintAuthority) (*MintClient, error) {
	rpcURL = strings.TrimSpace(rpcURL)
	if rpcURL == "" {
		rpcURL = rpc.DevnetRPCEndpoint
	}
	return newMintClient(client.NewClient(rpcURL), authority)
}

func newMintClient(api rpcAPI, authority *MintAuthority) (*MintClient, error) {
	if api == nil {
		return nil, fmt.Errorf("solana: rpc client is nil")
	}
	if authority == nil {
		return nil, fmt.Errorf("solana: mint authority is nil")
	}
	return &MintClient{
		rpc:        api,
		authority:  authority,
		newAccount: types.NewAccount,
		now:        time.Now,
	}, nil
}

// ValidateRecipient はネットワークに触れない。
func (c *MintClient) ValidateRecipient(address string) error {
	return ValidateAddress(address)
}

// PrepareMint builds and signs the mint transaction without sending it.
// 返す PendingMint の Signature / TokenID は送信前から確定している。
func (c *MintClient) PrepareMint(ctx context.Context, req mintdom.MintRequest) (windom.PendingMint, error) {
	if err := ValidateAddress(req.RecipientAddress); err != nil {
		return windom.PendingMint{}, err
	}
	if len(req.MetadataURI) > maxURILen {
		return windom.PendingMint{}, &mintdom.RejectedTransactionError{
			Err: fmt.Errorf("metadata uri exceeds %d bytes", maxURILen),
		}
	}

	rent, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, token.MintAccountSize)
	if err != nil {
		return windom.PendingMint{}, &mintdom.TransientChainError{Op: "rent", Err: err}
	}
	recent, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return windom.PendingMint{}, &mintdom.TransientChainError{Op: "blockhash", Err: err}
	}

	mint := c.newAccount()
	tx, err := buildMintTransaction(
		c.authority.Account,
		mint,
		common.PublicKeyFromString(req.RecipientAddress),
		NFTMetadataInput{
			Name:   clampUTF8(req.Name, maxNameLen),
			Symbol: clampUTF8(req.Symbol, maxSymbolLen),
			URI:    req.MetadataURI,
		},
		rent,
		recent.Blockhash,
	)
	if err != nil {
		return windom.PendingMint{}, err
	}

	raw, err := tx.Serialize()
	if err != nil {
		return windom.PendingMint{}, fmt.Errorf("serialize tx: %w", err)
	}
	if len(tx.Signatures) == 0 {
		return windom.PendingMint{}, fmt.Errorf("transaction is not signed")
	}

	p := windom.PendingMint{
		TokenID:    mint.PublicKey.ToBase58(),
		Signature:  base58.Encode(tx.Signatures[0]),
		RawTx:      raw,
		Blockhash:  recent.Blockhash,
		PreparedAt: c.now().UTC(),
	}
	log.Printf("[solana] prepared mint winner=%s token=%s sig=%s", req.WinnerID, p.TokenID, p.Signature)
	return p, nil
}

// SubmitMint sends the stored signed bytes. 同一バイト列の再送は二重 mint にならない。
func (c *MintClient) SubmitMint(ctx context.Context, p windom.PendingMint) error {
	tx, err := types.TransactionDeserialize(p.RawTx)
	if err != nil {
		return &mintdom.RejectedTransactionError{Signature: p.Signature, Err: fmt.Errorf("deserialize stored tx: %w", err)}
	}

	sig, err := c.rpc.SendTransaction(ctx, tx)
	if err != nil {
		cerr := classifySendError(p.Signature, err)
		if cerr == nil {
			log.Printf("[solana] submit: already processed sig=%s", p.Signature)
			return nil
		}
		log.Printf("[solana] submit FAILED sig=%s err=%v", p.Signature, err)
		return cerr
	}
	if sig != "" && sig != p.Signature {
		log.Printf("[solana] WARN rpc returned different signature want=%s got=%s", p.Signature, sig)
	}
	return nil
}

// SignatureStatus looks the signature up including transaction history.
func (c *MintClient) SignatureStatus(ctx context.Context, signature string) (mintdom.SignatureStatus, error) {
	st, err := c.rpc.GetSignatureStatusWithConfig(ctx, signature, client.GetSignatureStatusesConfig{
		SearchTransactionHistory: true,
	})
	if err != nil {
		return mintdom.SignatureStatus{}, &mintdom.TransientChainError{Op: "status", Err: err}
	}
	return statusFrom(st), nil
}

func (c *MintClient) BlockhashValid(ctx context.Context, blockhash string) (bool, error) {
	ok, err := c.rpc.IsBlockhashValid(ctx, blockhash)
	if err != nil {
		return false, &mintdom.TransientChainError{Op: "blockhash_valid", Err: err}
	}
	return ok, nil
}

func statusFrom(st *rpc.SignatureStatus) mintdom.SignatureStatus {
	if st == nil {
		return mintdom.SignatureStatus{Status: mintdom.StatusNotFound}
	}
	if st.Err != nil {
		return mintdom.SignatureStatus{Status: mintdom.StatusFailed, Err: fmt.Sprintf("%v", st.Err)}
	}
	if st.ConfirmationStatus != nil {
		switch *st.ConfirmationStatus {
		case rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
			return mintdom.SignatureStatus{Status: mintdom.StatusConfirmed}
		}
	}
	return mintdom.SignatureStatus{Status: mintdom.StatusPending}
}

// classifySendError は sendTransaction のエラーを分類する。
// nil は「既に処理済み」（= 着地済み）を意味する。
func classifySendError(signature string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &mintdom.TransientChainError{Op: "submit", Err: err}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "already been processed"):
		return nil
	case strings.Contains(msg, "blockhash not found"):
		return &mintdom.TransientChainError{Op: "submit", Err: err}
	case strings.Contains(msg, "insufficient funds"),
		strings.Contains(msg, "insufficient lamports"),
		strings.Contains(msg, "custom program error"),
		strings.Contains(msg, "signature verification failure"),
		strings.Contains(msg, "transaction simulation failed"):
		return &mintdom.RejectedTransactionError{Signature: signature, Err: err}
	default:
		return &mintdom.TransientChainError{Op: "submit", Err: err}
	}
}
