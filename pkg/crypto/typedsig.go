package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// TypedSignatureLength is the detached wire size: r(32) || s(32) || v(1) || type(1).
const TypedSignatureLength = 66

// SigType selects how the signed digest was wrapped before signing.
// Wallets that refuse raw digests prepend the Ethereum signed-message header
// with the payload length written in decimal or hex.
type SigType byte

const (
	SigTypeNoPrepend   SigType = 0
	SigTypeDecimal     SigType = 1
	SigTypeHexadecimal SigType = 2
)

var (
	prependDecimal     = []byte("\x19Ethereum Signed Message:\n32")
	prependHexadecimal = []byte("\x19Ethereum Signed Message:\n\x20")
)

// TypedSignature is a detached signature over a 32-byte order digest.
type TypedSignature struct {
	R    common.Hash
	S    common.Hash
	V    byte // raw recovery id (0/1); 27/28 accepted on decode
	Type SigType
}

// ParseTypedSignature decodes the 66-byte wire form.
func ParseTypedSignature(raw []byte) (*TypedSignature, error) {
	if len(raw) != TypedSignatureLength {
		return nil, fmt.Errorf("typed signature must be %d bytes, got %d", TypedSignatureLength, len(raw))
	}

	v := raw[64]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v > 1 {
		return nil, fmt.Errorf("invalid recovery id: %d", raw[64])
	}

	sigType := SigType(raw[65])
	if sigType > SigTypeHexadecimal {
		return nil, fmt.Errorf("invalid signature type: %d", sigType)
	}

	return &TypedSignature{
		R:    common.BytesToHash(raw[0:32]),
		S:    common.BytesToHash(raw[32:64]),
		V:    v,
		Type: sigType,
	}, nil
}

// Bytes returns the 66-byte wire form.
func (ts *TypedSignature) Bytes() []byte {
	out := make([]byte, TypedSignatureLength)
	copy(out[0:32], ts.R[:])
	copy(out[32:64], ts.S[:])
	out[64] = ts.V
	out[65] = byte(ts.Type)
	return out
}

// WrapDigest applies the signature type's prepend to a 32-byte digest and
// returns the digest that was actually signed.
func (ts *TypedSignature) WrapDigest(hash common.Hash) common.Hash {
	switch ts.Type {
	case SigTypeDecimal:
		return crypto.Keccak256Hash(prependDecimal, hash[:])
	case SigTypeHexadecimal:
		return crypto.Keccak256Hash(prependHexadecimal, hash[:])
	default:
		return hash
	}
}

// Recover returns the address that signed the given order digest, honoring
// the signature's embedded prepend type.
func (ts *TypedSignature) Recover(hash common.Hash) (common.Address, error) {
	sig := make([]byte, 65)
	copy(sig[0:32], ts.R[:])
	copy(sig[32:64], ts.S[:])
	sig[64] = ts.V

	wrapped := ts.WrapDigest(hash)
	return RecoverAddress(wrapped[:], sig)
}

// SignTyped signs a 32-byte digest with the requested prepend type and
// returns the detached typed signature.
func SignTyped(signer *Signer, hash common.Hash, sigType SigType) (*TypedSignature, error) {
	ts := &TypedSignature{Type: sigType}

	signed := ts.WrapDigest(hash)
	raw, err := signer.Sign(signed[:])
	if err != nil {
		return nil, err
	}

	ts.R = common.BytesToHash(raw[0:32])
	ts.S = common.BytesToHash(raw[32:64])
	ts.V = raw[64]
	return ts, nil
}
