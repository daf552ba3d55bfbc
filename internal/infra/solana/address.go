package solana

import (
	"strings"

	"github.com/mr-tron/base58"

	mintdom "github.com/aaruvan/tokenchamp/internal/domain/mint"
)

// ValidateAddress checks that addr is a base58 ed25519 public key.
// PDA（curve 外のアドレス）も受取人として許容する。
func ValidateAddress(addr string) error {
	s := strings.TrimSpace(addr)
	if s == "" {
		return &mintdom.InvalidRecipientError{Address: addr, Reason: "empty"}
	}
	if s != addr {
		return &mintdom.InvalidRecipientError{Address: addr, Reason: "surrounding whitespace"}
	}
	b, err := base58.Decode(s)
	if err != nil {
		return &mintdom.InvalidRecipientError{Address: addr, Reason: "not base58"}
	}
	if len(b) != 32 {
		return &mintdom.InvalidRecipientError{Address: addr, Reason: "decoded length is not 32 bytes"}
	}
	return nil
}
