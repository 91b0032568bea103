package signature

import (
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	wallet := Address(key)

	sig, err := Sign(key, "match-result\nmatch:abc")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sig, "0x"))
	assert.Len(t, sig, 2+65*2)

	require.NoError(t, Verify(wallet, "match-result\nmatch:abc", sig))
	require.NoError(t, Verify("0x"+strings.ToUpper(wallet[2:]), "match-result\nmatch:abc", sig), "address compare is case-insensitive")
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := Sign(key, "placement:2/5")
	require.NoError(t, err)

	err = Verify(Address(key), "placement:1/5", sig)
	assert.True(t, errors.Is(err, ErrMismatch), "got %v", err)
}

func TestVerifyRejectsOtherSigner(t *testing.T) {
	signer, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := Sign(signer, "hello")
	require.NoError(t, err)

	assert.ErrorIs(t, Verify(Address(other), "hello", sig), ErrMismatch)
}

func TestRecoverAcceptsZeroOneRecoveryID(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := Sign(key, "hello")
	require.NoError(t, err)

	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	raw[crypto.RecoveryIDOffset] -= 27

	addr, err := Recover("hello", hexutil.Encode(raw))
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)
}

func TestRecoverMalformed(t *testing.T) {
	tests := []string{"", "0x", "nothex", "0x1234"}
	for _, sig := range tests {
		_, err := Recover("hello", sig)
		assert.ErrorIs(t, err, ErrMalformed, "sig %q", sig)
	}
}
