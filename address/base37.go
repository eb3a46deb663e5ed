// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package address

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Base-37 packs short lowercase strings into 16 bytes. The alphabet is a
// space followed by 0-9 and a-z.
const base37Charset = " 0123456789abcdefghijklmnopqrstuvwxyz"

var (
	// ErrInvalidCharacter reports a character outside the base-37 alphabet.
	ErrInvalidCharacter = errors.New("address: invalid base37 character")
	// ErrOutputTooLong reports a string that does not fit in 16 bytes.
	ErrOutputTooLong = errors.New("address: base37 output exceeds 16 bytes")

	base37    = uint256.NewInt(37)
	base37Max = new(uint256.Int).Lsh(uint256.NewInt(1), 128)
)

// EncodeBase37 packs text into a big-endian 16-byte array.
func EncodeBase37(text string) ([16]byte, error) {
	value := new(uint256.Int)

	for _, c := range text {
		idx := strings.IndexByte(base37Charset, byte(c))
		if c > 0x7f || idx < 0 {
			return [16]byte{}, fmt.Errorf("%w: %q", ErrInvalidCharacter, c)
		}

		value.Mul(value, base37)
		value.Add(value, uint256.NewInt(uint64(idx)))
		if value.Cmp(base37Max) >= 0 {
			return [16]byte{}, ErrOutputTooLong
		}
	}

	full := value.Bytes32()
	var out [16]byte
	copy(out[:], full[16:])
	return out, nil
}

// DecodeBase37 unpacks a 16-byte array back into its string form.
func DecodeBase37(b [16]byte) string {
	value := new(uint256.Int).SetBytes(b[:])

	var out []byte
	rem := new(uint256.Int)
	for !value.IsZero() {
		value.DivMod(value, base37, rem)
		out = append(out, base37Charset[rem.Uint64()])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}
