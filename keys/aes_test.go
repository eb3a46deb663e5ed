// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keys

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGCMRoundTrip(t *testing.T) {
	key := repeatKey(1)
	plaintext := [][]byte{[]byte("Hello, world! 1"), []byte("Hello, world! 2"), []byte("x")}

	ct, err := EncryptGCM(plaintext, key, rand.Reader)
	require.NoError(t, err)
	require.Len(t, ct.Data, 3)
	for i := range plaintext {
		require.Equal(t, len(plaintext[i]), len(ct.Data[i]))
		require.False(t, bytes.Equal(plaintext[i], ct.Data[i]))
	}

	decrypted, err := DecryptGCM(ct, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestGCMWrongKeyFails(t *testing.T) {
	ct, err := EncryptGCM([][]byte{[]byte("secret")}, repeatKey(1), rand.Reader)
	require.NoError(t, err)

	_, err = DecryptGCM(ct, repeatKey(2))
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestGCMTamperedTagFails(t *testing.T) {
	key := repeatKey(1)
	ct, err := EncryptGCM([][]byte{[]byte("secret")}, key, rand.Reader)
	require.NoError(t, err)

	ct.Tag[0] ^= 1
	_, err = DecryptGCM(ct, key)
	require.ErrorIs(t, err, ErrDecryptFailed)
}

func TestCTRRoundTrip(t *testing.T) {
	key := repeatKey(3)
	plaintext := [][]byte{
		[]byte("Hello, world! 1"),
		[]byte("Hello, world! 2"),
		[]byte("Hello, world! 3"),
	}

	ct, err := EncryptCTR(plaintext, key, rand.Reader)
	require.NoError(t, err)

	decrypted, err := DecryptCTR(ct, key)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestCTRKeystreamSpansBlocks(t *testing.T) {
	// Encrypting [a, b] together must differ from encrypting b alone with
	// the same IV: the keystream runs across block boundaries.
	key := repeatKey(4)
	iv := bytes.Repeat([]byte{7}, 16)
	ct, err := EncryptCTR([][]byte{[]byte("0123456789abcdef"), []byte("second")}, key, bytes.NewReader(iv))
	require.NoError(t, err)

	alone, err := EncryptCTR([][]byte{[]byte("second")}, key, bytes.NewReader(iv))
	require.NoError(t, err)
	require.NotEqual(t, alone.Data[0], ct.Data[1])

	decrypted, err := DecryptCTR(ct, key)
	require.NoError(t, err)
	require.Equal(t, []byte("second"), decrypted[1])
}
