// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"
)

// Ciphertext is an AES-256-GCM ciphertext with a 16-byte IV and tag. Block
// boundaries of the plaintext are preserved: Data holds the ciphertext split
// back into the original block lengths.
type Ciphertext struct {
	IV   [16]byte
	Tag  [16]byte
	Data [][]byte
}

// CiphertextCTR is an AES-256-CTR ciphertext (no integrity tag).
type CiphertextCTR struct {
	IV   [16]byte
	Data [][]byte
}

var (
	// ErrDataTooShort reports GCM output shorter than one tag.
	ErrDataTooShort = errors.New("keys: encrypted data is too short")
	// ErrDecryptFailed reports a GCM authentication failure.
	ErrDecryptFailed = errors.New("keys: decrypt failed")
)

// EncryptGCM encrypts the concatenation of plaintext blocks under AES-256-GCM
// with a random 16-byte IV, splitting the ciphertext back on the original
// block boundaries.
func EncryptGCM(plaintext [][]byte, key [32]byte, rand io.Reader) (Ciphertext, error) {
	var iv [16]byte
	if _, err := io.ReadFull(rand, iv[:]); err != nil {
		return Ciphertext{}, err
	}
	return encryptGCMWithIV(plaintext, key, iv)
}

func encryptGCMWithIV(plaintext [][]byte, key [32]byte, iv [16]byte) (Ciphertext, error) {
	aead, err := newGCM(key)
	if err != nil {
		return Ciphertext{}, err
	}

	var combined []byte
	lengths := make([]int, len(plaintext))
	for i, block := range plaintext {
		lengths[i] = len(block)
		combined = append(combined, block...)
	}

	sealed := aead.Seal(nil, iv[:], combined, nil)
	if len(sealed) < 16 {
		return Ciphertext{}, ErrDataTooShort
	}

	var tag [16]byte
	copy(tag[:], sealed[len(sealed)-16:])
	body := sealed[:len(sealed)-16]

	data := make([][]byte, len(lengths))
	offset := 0
	for i, n := range lengths {
		data[i] = append([]byte(nil), body[offset:offset+n]...)
		offset += n
	}

	return Ciphertext{IV: iv, Tag: tag, Data: data}, nil
}

// DecryptGCM authenticates and decrypts a ciphertext, returning the
// plaintext split on the recorded block boundaries.
func DecryptGCM(ct Ciphertext, key [32]byte) ([][]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	var combined []byte
	for _, block := range ct.Data {
		combined = append(combined, block...)
	}
	combined = append(combined, ct.Tag[:]...)

	plain, err := aead.Open(nil, ct.IV[:], combined, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptFailed, err)
	}

	data := make([][]byte, len(ct.Data))
	offset := 0
	for i, block := range ct.Data {
		data[i] = append([]byte(nil), plain[offset:offset+len(block)]...)
		offset += len(block)
	}

	return data, nil
}

// EncryptCTR encrypts blocks under AES-256-CTR with a 128-bit big-endian
// counter and a random 16-byte IV. The keystream runs across block
// boundaries.
func EncryptCTR(plaintext [][]byte, key [32]byte, rand io.Reader) (CiphertextCTR, error) {
	var iv [16]byte
	if _, err := io.ReadFull(rand, iv[:]); err != nil {
		return CiphertextCTR{}, err
	}

	block, err := aes.NewCipher(key[:])
	if err != nil {
		return CiphertextCTR{}, err
	}
	stream := cipher.NewCTR(block, iv[:])

	data := make([][]byte, len(plaintext))
	for i, p := range plaintext {
		buf := make([]byte, len(p))
		stream.XORKeyStream(buf, p)
		data[i] = buf
	}

	return CiphertextCTR{IV: iv, Data: data}, nil
}

// DecryptCTR decrypts a CTR ciphertext.
func DecryptCTR(ct CiphertextCTR, key [32]byte) ([][]byte, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	stream := cipher.NewCTR(block, ct.IV[:])

	data := make([][]byte, len(ct.Data))
	for i, c := range ct.Data {
		buf := make([]byte, len(c))
		stream.XORKeyStream(buf, c)
		data[i] = buf
	}

	return data, nil
}

func newGCM(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCMWithNonceSize(block, 16)
}

// EncryptGCM encrypts under the shared key.
func (k SharedKey) EncryptGCM(plaintext [][]byte, rand io.Reader) (Ciphertext, error) {
	return EncryptGCM(plaintext, [32]byte(k), rand)
}

// DecryptGCM decrypts under the shared key.
func (k SharedKey) DecryptGCM(ct Ciphertext) ([][]byte, error) {
	return DecryptGCM(ct, [32]byte(k))
}

// EncryptGCM encrypts under the raw viewing key bytes.
func (k ViewingKey) EncryptGCM(plaintext [][]byte, rand io.Reader) (Ciphertext, error) {
	return EncryptGCM(plaintext, [32]byte(k), rand)
}

// DecryptGCM decrypts under the raw viewing key bytes.
func (k ViewingKey) DecryptGCM(ct Ciphertext) ([][]byte, error) {
	return DecryptGCM(ct, [32]byte(k))
}

// EncryptCTR encrypts under the raw viewing key bytes.
func (k ViewingKey) EncryptCTR(plaintext [][]byte, rand io.Reader) (CiphertextCTR, error) {
	return EncryptCTR(plaintext, [32]byte(k), rand)
}

// DecryptCTR decrypts under the raw viewing key bytes.
func (k ViewingKey) DecryptCTR(ct CiphertextCTR) ([][]byte, error) {
	return DecryptCTR(ct, [32]byte(k))
}
