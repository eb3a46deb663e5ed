// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package keys implements the account key model: BabyJubJub spending keys,
// Curve25519 viewing keys, the Poseidon-derived nullifying and master keys,
// ECDH shared-key derivation and per-transaction key blinding.
package keys

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/holiman/uint256"

	"github.com/luxfi/veil/babyjub"
	"github.com/luxfi/veil/field"
	"github.com/luxfi/veil/poseidon"
)

var (
	// ErrDecompressionFailed reports a 32-byte string that is not a valid
	// Ed25519 point encoding.
	ErrDecompressionFailed = errors.New("keys: failed to decompress public key")
	// ErrInvalidKeyHex reports a hex key string of the wrong shape.
	ErrInvalidKeyHex = errors.New("keys: invalid 32-byte hex key")
)

// SpendingKey is the 32-byte EdDSA seed authorising spends.
type SpendingKey [32]byte

// ViewingKey is the 32-byte Curve25519 seed used for note encryption and
// nullifier derivation.
type ViewingKey [32]byte

// ViewingPublicKey is the Ed25519 verification key of a viewing key.
type ViewingPublicKey [32]byte

// SharedKey is a 32-byte AES key derived via ECDH.
type SharedKey [32]byte

// NullifyingKey is Poseidon(viewingKey), used to derive nullifiers.
type NullifyingKey [32]byte

// BlindedKey is a one-time blinded viewing public key attached to ciphertexts.
type BlindedKey [32]byte

// MasterPublicKey is the on-chain account identifier
// Poseidon(spendingPub.x, spendingPub.y, nullifyingKey).
type MasterPublicKey [32]byte

// SpendingPublicKey is the BabyJubJub public key of a spending key.
type SpendingPublicKey struct {
	X [32]byte `json:"x"`
	Y [32]byte `json:"y"`
}

// Signature is an EdDSA signature in circuit form.
type Signature struct {
	R8X uint256.Int
	R8Y uint256.Int
	S   uint256.Int
}

// ParseKeyHex decodes a 64-char (optionally 0x-prefixed) hex key.
func ParseKeyHex(s string) ([32]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	var out [32]byte
	if len(s) != 64 {
		return out, ErrInvalidKeyHex
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidKeyHex, err)
	}
	copy(out[:], b)
	return out, nil
}

// KeyToUint interprets a 32-byte key as a big-endian word.
func KeyToUint(k [32]byte) uint256.Int {
	var out uint256.Int
	out.SetBytes(k[:])
	return out
}

// UintToKey encodes a word as a 32-byte big-endian key.
func UintToKey(v *uint256.Int) [32]byte {
	return v.Bytes32()
}

// PublicKey derives the BabyJubJub public key.
func (k SpendingKey) PublicKey() SpendingPublicKey {
	pk := babyjub.PrivateKey(k).Public()

	var out SpendingPublicKey
	x := field.FromElement(&pk.X)
	y := field.FromElement(&pk.Y)
	out.X = x.Bytes32()
	out.Y = y.Bytes32()
	return out
}

// Sign produces the EdDSA signature over message in circuit form.
func (k SpendingKey) Sign(message *uint256.Int) (Signature, error) {
	sig, err := babyjub.PrivateKey(k).Sign(message.ToBig())
	if err != nil {
		return Signature{}, err
	}

	s, _ := uint256.FromBig(sig.S)
	return Signature{
		R8X: field.FromElement(&sig.R8.X),
		R8Y: field.FromElement(&sig.R8.Y),
		S:   *s,
	}, nil
}

// XUint returns the x coordinate as a word.
func (p SpendingPublicKey) XUint() uint256.Int {
	var out uint256.Int
	out.SetBytes(p.X[:])
	return out
}

// YUint returns the y coordinate as a word.
func (p SpendingPublicKey) YUint() uint256.Int {
	var out uint256.Int
	out.SetBytes(p.Y[:])
	return out
}

// PublicKey derives the Ed25519 verification key of the viewing key.
func (k ViewingKey) PublicKey() ViewingPublicKey {
	priv := ed25519.NewKeyFromSeed(k[:])
	pub := priv.Public().(ed25519.PublicKey)

	var out ViewingPublicKey
	copy(out[:], pub)
	return out
}

// NullifyingKey derives Poseidon(viewingKey).
func (k ViewingKey) NullifyingKey() NullifyingKey {
	v := KeyToUint([32]byte(k))
	h := poseidon.MustHash(v)
	return NullifyingKey(h.Bytes32())
}

// scalar derives the clamped Curve25519 scalar of the viewing key:
// SHA-512 of the seed, first 32 bytes pruned per Ed25519.
func (k ViewingKey) scalar() *edwards25519.Scalar {
	h := sha512.Sum512(k[:])
	s, err := new(edwards25519.Scalar).SetBytesWithClamping(h[:32])
	if err != nil {
		panic(err) // 32-byte input cannot fail
	}
	return s
}

// DeriveSharedKey derives the symmetric key against an unblinded Ed25519
// point: SHA-256 of the compressed product point.
func (k ViewingKey) DeriveSharedKey(their ViewingPublicKey) (SharedKey, error) {
	return k.sharedWithPoint(their[:])
}

// DeriveSharedKeyBlinded is DeriveSharedKey against a blinded counterpart key.
func (k ViewingKey) DeriveSharedKeyBlinded(blinded BlindedKey) (SharedKey, error) {
	return k.sharedWithPoint(blinded[:])
}

func (k ViewingKey) sharedWithPoint(compressed []byte) (SharedKey, error) {
	point, err := new(edwards25519.Point).SetBytes(compressed)
	if err != nil {
		return SharedKey{}, ErrDecompressionFailed
	}

	shared := new(edwards25519.Point).ScalarMult(k.scalar(), point)
	digest := sha256.Sum256(shared.Bytes())
	return SharedKey(digest), nil
}

// DeriveSharedSecret derives the raw Curve25519 shared secret: the Montgomery
// u-coordinate of scalar * point, compatible with @noble/ed25519's
// getSharedSecret.
func (k ViewingKey) DeriveSharedSecret(their ViewingPublicKey) (SharedKey, error) {
	point, err := new(edwards25519.Point).SetBytes(their[:])
	if err != nil {
		return SharedKey{}, ErrDecompressionFailed
	}

	shared := new(edwards25519.Point).ScalarMult(k.scalar(), point)

	var out SharedKey
	copy(out[:], shared.BytesMontgomery())
	return out, nil
}

// BlindViewingKeys blinds the sender and receiver viewing public keys with a
// scalar derived from sharedRandom XOR senderRandom: the SHA-512 digest is
// interpreted big-endian and wide-reduced modulo the group order.
func BlindViewingKeys(sender, receiver ViewingPublicKey, sharedRandom, senderRandom [32]byte) (BlindedKey, BlindedKey, error) {
	senderPoint, err := new(edwards25519.Point).SetBytes(sender[:])
	if err != nil {
		return BlindedKey{}, BlindedKey{}, ErrDecompressionFailed
	}
	receiverPoint, err := new(edwards25519.Point).SetBytes(receiver[:])
	if err != nil {
		return BlindedKey{}, BlindedKey{}, ErrDecompressionFailed
	}

	var finalRandom [32]byte
	for i := range finalRandom {
		finalRandom[i] = sharedRandom[i] ^ senderRandom[i]
	}

	digest := sha512.Sum512(finalRandom[:])
	for i, j := 0, len(digest)-1; i < j; i, j = i+1, j-1 {
		digest[i], digest[j] = digest[j], digest[i]
	}
	scalar, err := new(edwards25519.Scalar).SetUniformBytes(digest[:])
	if err != nil {
		return BlindedKey{}, BlindedKey{}, err
	}

	var blindedSender, blindedReceiver BlindedKey
	copy(blindedSender[:], new(edwards25519.Point).ScalarMult(scalar, senderPoint).Bytes())
	copy(blindedReceiver[:], new(edwards25519.Point).ScalarMult(scalar, receiverPoint).Bytes())
	return blindedSender, blindedReceiver, nil
}

// NewMasterPublicKey derives Poseidon(pub.x, pub.y, nullifyingKey).
func NewMasterPublicKey(pub SpendingPublicKey, nk NullifyingKey) MasterPublicKey {
	h := poseidon.MustHash(pub.XUint(), pub.YUint(), KeyToUint([32]byte(nk)))
	return MasterPublicKey(h.Bytes32())
}

// Uint returns the master key as a word.
func (m MasterPublicKey) Uint() uint256.Int {
	return KeyToUint([32]byte(m))
}

// Uint returns the nullifying key as a word.
func (n NullifyingKey) Uint() uint256.Int {
	return KeyToUint([32]byte(n))
}

// Uint returns the blinded key as a word.
func (b BlindedKey) Uint() uint256.Int {
	return KeyToUint([32]byte(b))
}

// Hex returns the lowercase hex encoding of the key.
func (k SpendingKey) Hex() string      { return hex.EncodeToString(k[:]) }
func (k ViewingKey) Hex() string       { return hex.EncodeToString(k[:]) }
func (k ViewingPublicKey) Hex() string { return hex.EncodeToString(k[:]) }
func (k SharedKey) Hex() string        { return hex.EncodeToString(k[:]) }
func (k NullifyingKey) Hex() string    { return hex.EncodeToString(k[:]) }
func (k BlindedKey) Hex() string       { return hex.EncodeToString(k[:]) }
func (k MasterPublicKey) Hex() string  { return hex.EncodeToString(k[:]) }
