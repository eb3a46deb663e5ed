// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package babyjub

import (
	"errors"
	"math/big"

	"github.com/dchest/blake512"

	"github.com/luxfi/veil/field"
	"github.com/luxfi/veil/poseidon"
)

// PrivateKey is a 32-byte EdDSA seed.
type PrivateKey [32]byte

// Signature is an EdDSA signature (R8, s).
type Signature struct {
	R8 Point
	S  *big.Int
}

// ErrMsgOutsideField reports a message that is not a canonical field element.
var ErrMsgOutsideField = errors.New("babyjub: message outside scalar field")

// ScalarKey derives the signing scalar: Blake-512 of the seed, RFC-8032
// pruning of the first 32 bytes, right shift by 3 to clear the cofactor.
// Compatible with circomlib's blake512-based key derivation.
func (k PrivateKey) ScalarKey() *big.Int {
	h := blake512Digest(k[:])

	var pruned [32]byte
	copy(pruned[:], h[:32])
	pruned[0] &= 0xF8
	pruned[31] &= 0x7F
	pruned[31] |= 0x40

	sk := leBytesToBig(pruned[:])
	return sk.Rsh(sk, 3)
}

// Public returns the public key scalarKey * B8.
func (k PrivateKey) Public() Point {
	return B8().MulScalar(k.ScalarKey())
}

// Sign produces a deterministic EdDSA signature over msg, which must be a
// canonical field element.
func (k PrivateKey) Sign(msg *big.Int) (Signature, error) {
	if msg.Sign() < 0 || msg.Cmp(field.Q) >= 0 {
		return Signature{}, ErrMsgOutsideField
	}

	h := blake512Digest(k[:])

	var msg32 [32]byte
	bigToLEBytes(msg, msg32[:])

	// r = blake512(h[32:64] || msg_le_32) mod subOrder
	var rBytes [64]byte
	copy(rBytes[:32], h[32:])
	copy(rBytes[32:], msg32[:])
	rHashed := blake512Digest(rBytes[:])
	r := leBytesToBig(rHashed[:])
	r.Mod(r, field.SubOrder)

	rB8 := B8().MulScalar(r)
	pk := k.Public()

	hm, err := poseidon.HashBig([]*big.Int{
		field.ElementToBig(&rB8.X),
		field.ElementToBig(&rB8.Y),
		field.ElementToBig(&pk.X),
		field.ElementToBig(&pk.Y),
		msg,
	})
	if err != nil {
		return Signature{}, err
	}

	// s = (r + hm * (scalarKey << 3)) mod subOrder
	s := k.ScalarKey()
	s.Lsh(s, 3)
	s.Mul(s, hm)
	s.Add(s, r)
	s.Mod(s, field.SubOrder)

	return Signature{R8: rB8, S: s}, nil
}

// Verify checks the canonical verification equation
// 8*s*B8 == 8*R8 + 8*hm*A for message msg against public key pk.
func Verify(pk Point, msg *big.Int, sig Signature) bool {
	hm, err := poseidon.HashBig([]*big.Int{
		field.ElementToBig(&sig.R8.X),
		field.ElementToBig(&sig.R8.Y),
		field.ElementToBig(&pk.X),
		field.ElementToBig(&pk.Y),
		msg,
	})
	if err != nil {
		return false
	}

	eight := big.NewInt(8)
	lhs := B8().MulScalar(new(big.Int).Mul(sig.S, eight))

	hm8 := new(big.Int).Mul(hm, eight)
	rhs := sig.R8.MulScalar(eight).Projective().Add(pk.MulScalar(hm8).Projective()).Affine()

	return lhs.X.Equal(&rhs.X) && lhs.Y.Equal(&rhs.Y)
}

func blake512Digest(data []byte) []byte {
	h := blake512.New()
	h.Write(data)
	return h.Sum(nil)
}

func leBytesToBig(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i, c := range b {
		be[len(b)-1-i] = c
	}
	return new(big.Int).SetBytes(be)
}

func bigToLEBytes(v *big.Int, dst []byte) {
	be := v.Bytes()
	for i, c := range be {
		dst[len(be)-1-i] = c
	}
}
