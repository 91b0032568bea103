// Package signature checks EIP-191 personal_sign signatures over submission
// messages.
package signature

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrMalformed = errors.New("malformed_signature")
	ErrMismatch  = errors.New("signature_mismatch")
)

// Recover returns the address that produced sigHex over message. Both the
// 27/28 and 0/1 recovery id conventions are accepted.
func Recover(message, sigHex string) (common.Address, error) {
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrMalformed, len(sig))
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify reports ErrMismatch when the signer is not wallet.
func Verify(wallet, message, sigHex string) error {
	if !common.IsHexAddress(wallet) {
		return fmt.Errorf("%w: wallet %q", ErrMismatch, wallet)
	}
	got, err := Recover(message, sigHex)
	if err != nil {
		return err
	}
	if got != common.HexToAddress(wallet) {
		return ErrMismatch
	}
	return nil
}

// Sign produces a 0x-prefixed personal_sign signature with V in 27/28.
func Sign(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

func Address(key *ecdsa.PrivateKey) string {
	return strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
}
