package wallet

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChallengeMessage is the exact text a wallet signs. appName comes from
// configuration so staging deployments produce distinct messages.
func ChallengeMessage(appName, nonce string) string {
	return fmt.Sprintf("Sign this message to authenticate with %s: %s", appName, nonce)
}

// recoverSigner recovers the address that produced an EIP-191 personal-sign
// signature over message.
func recoverSigner(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}

	// Wallets produce v in {27, 28}; go-ethereum expects {0, 1}.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	prefixed := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(message), message)
	hash := crypto.Keccak256([]byte(prefixed))

	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// verifySignature reports whether signature over message recovers to the
// claimed wallet address. Address comparison is case-insensitive.
func verifySignature(message, signature, walletAddress string) bool {
	if !common.IsHexAddress(walletAddress) {
		return false
	}

	recovered, err := recoverSigner(message, signature)
	if err != nil {
		return false
	}

	return strings.EqualFold(recovered.Hex(), common.HexToAddress(walletAddress).Hex())
}
