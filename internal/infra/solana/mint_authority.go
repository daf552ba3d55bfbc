// internal/infra/solana/mint_authority.go
package solana

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	secretspb "cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/blocto/solana-go-sdk/types"
)

// MintAuthority は Champion NFT の mint 権限 / fee payer を兼ねるウォレット。
type MintAuthority struct {
	Account types.Account
}

func (a *MintAuthority) Address() string {
	if a == nil {
		return ""
	}
	return a.Account.PublicKey.ToBase58()
}

// LoadMintAuthority は secretName（Secret Version のフルパス）か keypairPath から
// solana-keygen 形式の keypair(JSON配列 [u8;64]) を復元する。
// secretName が優先。
//
//	"projects/<PROJECT_ID>/secrets/<SECRET_ID>/versions/latest"
func LoadMintAuthority(ctx context.Context, secretName, keypairPath string) (*MintAuthority, error) {
	secretName = strings.TrimSpace(secretName)
	keypairPath = strings.TrimSpace(keypairPath)

	var (
		raw    []byte
		source string
	)
	switch {
	case secretName != "":
		data, err := accessSecret(ctx, secretName)
		if err != nil {
			return nil, err
		}
		raw, source = data, "secret="+secretName
	case keypairPath != "":
		data, err := os.ReadFile(keypairPath)
		if err != nil {
			return nil, fmt.Errorf("read keypair file: %w", err)
		}
		raw, source = data, "file="+keypairPath
	default:
		return nil, fmt.Errorf("mint authority not configured (SOLANA_MINT_KEY_SECRET / SOLANA_KEYPAIR_PATH)")
	}

	acc, err := AccountFromKeypairJSON(raw)
	if err != nil {
		return nil, err
	}

	log.Printf("[solana] loaded mint authority %s pubkey=%s", source, acc.PublicKey.ToBase58())
	return &MintAuthority{Account: acc}, nil
}

func accessSecret(ctx context.Context, name string) ([]byte, error) {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secretmanager.NewClient: %w", err)
	}
	defer client.Close()

	resp, err := client.AccessSecretVersion(ctx, &secretspb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		return nil, fmt.Errorf("AccessSecretVersion: %w", err)
	}
	if resp.GetPayload() == nil {
		return nil, fmt.Errorf("secret %s has no payload", name)
	}
	return resp.GetPayload().GetData(), nil
}

// AccountFromKeypairJSON restores a types.Account from keypair JSON.
func AccountFromKeypairJSON(data []byte) (types.Account, error) {
	keyBytes, err := decodeKeypairJSON(data)
	if err != nil {
		return types.Account{}, err
	}
	acc, err := types.AccountFromBytes(keyBytes)
	if err != nil {
		return types.Account{}, fmt.Errorf("AccountFromBytes: %w", err)
	}
	return acc, nil
}

// EncodeKeypairJSON は solana-keygen 互換の [int,...] 形式で書き出す。
func EncodeKeypairJSON(acc types.Account) ([]byte, error) {
	ints := make([]int, len(acc.PrivateKey))
	for i, b := range acc.PrivateKey {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

// decodeKeypairJSON は keypair JSON から 64 バイトの鍵配列を復元します。
// - 正: [u8;64] を []byte で受け取る（base64 文字列）
// - 互換: [int,...] を []int で受けてから []byte に変換
func decodeKeypairJSON(data []byte) ([]byte, error) {
	var keyBytes []byte
	if err := json.Unmarshal(data, &keyBytes); err == nil && len(keyBytes) == ed25519.PrivateKeySize {
		return keyBytes, nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return nil, fmt.Errorf("unmarshal keypair json: %w", err)
	}
	if len(ints) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("unexpected secret key length: got %d, want %d", len(ints), ed25519.PrivateKeySize)
	}

	keyBytes = make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair byte out of range at %d: %d", i, v)
		}
		keyBytes[i] = byte(v)
	}
	return keyBytes, nil
}
