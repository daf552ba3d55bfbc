// internal/infra/solana/nft_mint.go
package solana

import (
	"fmt"

	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/program/associated_token_account"
	"github.com/blocto/solana-go-sdk/program/metaplex/token_metadata"
	"github.com/blocto/solana-go-sdk/program/system"
	"github.com/blocto/solana-go-sdk/program/token"
	"github.com/blocto/solana-go-sdk/types"
)

// Metaplex の on-chain フィールド上限（バイト）
const (
	maxNameLen   = 32
	maxSymbolLen = 10
	maxURILen    = 200
)

// NFTMetadataInput は on-chain Metadata アカウントに書き込む値。
type NFTMetadataInput struct {
	Name                 string
	Symbol               string
	URI                  string // Arweave / IPFS 上の metadata.json
	SellerFeeBasisPoints uint16
}

// buildMintTransaction は 1-of-1 NFT を owner に mint する署名済み tx を組み立てる。
// 送信はしない。mint は新規アカウント（= token id）。
func buildMintTransaction(
	feePayer types.Account,
	mint types.Account,
	owner common.PublicKey,
	meta NFTMetadataInput,
	mintRent uint64,
	recentBlockhash string,
) (types.Transaction, error) {
	ata, _, err := common.FindAssociatedTokenAddress(owner, mint.PublicKey)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("FindAssociatedTokenAddress: %w", err)
	}

	metadataPubkey, err := token_metadata.GetTokenMetaPubkey(mint.PublicKey)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("GetTokenMetaPubkey: %w", err)
	}
	masterEditionPubkey, err := token_metadata.GetMasterEdition(mint.PublicKey)
	if err != nil {
		return types.Transaction{}, fmt.Errorf("GetMasterEdition: %w", err)
	}

	// Champion badge は 1 枚もの。print edition は作らない
	maxSupply := uint64(0)

	tx, err := types.NewTransaction(types.NewTransactionParam{
		Signers: []types.Account{feePayer, mint},
		Message: types.NewMessage(types.NewMessageParam{
			FeePayer:        feePayer.PublicKey,
			RecentBlockhash: recentBlockhash,
			Instructions: []types.Instruction{
				// 1) Mint アカウント作成
				system.CreateAccount(system.CreateAccountParam{
					From:     feePayer.PublicKey,
					New:      mint.PublicKey,
					Owner:    common.TokenProgramID,
					Lamports: mintRent,
					Space:    token.MintAccountSize,
				}),
				// 2) Mint 初期化 (decimals = 0)
				token.InitializeMint(token.InitializeMintParam{
					Decimals:   0,
					Mint:       mint.PublicKey,
					MintAuth:   feePayer.PublicKey,
					FreezeAuth: &feePayer.PublicKey,
				}),
				// 3) Metaplex Metadata
				token_metadata.CreateMetadataAccountV3(
					token_metadata.CreateMetadataAccountV3Param{
						Metadata:                metadataPubkey,
						Mint:                    mint.PublicKey,
						MintAuthority:           feePayer.PublicKey,
						UpdateAuthority:         feePayer.PublicKey,
						Payer:                   feePayer.PublicKey,
						UpdateAuthorityIsSigner: true,
						IsMutable:               true,
						Data: token_metadata.DataV2{
							Name:                 meta.Name,
							Symbol:               meta.Symbol,
							Uri:                  meta.URI,
							SellerFeeBasisPoints: meta.SellerFeeBasisPoints,
							Creators: &[]token_metadata.Creator{
								{
									Address:  feePayer.PublicKey,
									Verified: true,
									Share:    100,
								},
							},
						},
					},
				),
				// 4) 受取人の ATA
				associated_token_account.CreateAssociatedTokenAccount(
					associated_token_account.CreateAssociatedTokenAccountParam{
						Funder:                 feePayer.PublicKey,
						Owner:                  owner,
						Mint:                   mint.PublicKey,
						AssociatedTokenAccount: ata,
					},
				),
				// 5) 1 枚 mint
				token.MintTo(token.MintToParam{
					Mint:   mint.PublicKey,
					To:     ata,
					Auth:   feePayer.PublicKey,
					Amount: 1,
				}),
				// 6) MasterEdition v3（mint authority は edition PDA に移る）
				token_metadata.CreateMasterEditionV3(
					token_metadata.CreateMasterEditionParam{
						Edition:         masterEditionPubkey,
						Mint:            mint.PublicKey,
						UpdateAuthority: feePayer.PublicKey,
						MintAuthority:   feePayer.PublicKey,
						Metadata:        metadataPubkey,
						Payer:           feePayer.PublicKey,
						MaxSupply:       &maxSupply,
					},
				),
			},
		}),
	})
	if err != nil {
		return types.Transaction{}, fmt.Errorf("NewTransaction: %w", err)
	}
	return tx, nil
}

// clampUTF8 は n バイト以内に収まるよう rune 境界で切り詰める。
func clampUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	out := make([]rune, 0, n)
	size := 0
	for _, r := range s {
		l := len(string(r))
		if size+l > n {
			break
		}
		out = append(out, r)
		size += l
	}
	return string(out)
}
