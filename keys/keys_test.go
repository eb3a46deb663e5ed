// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package keys

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// Known values generated with the reference SDK.

func repeatKey(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func TestSpendingPublicKey(t *testing.T) {
	spending := SpendingKey(repeatKey(1))
	pub := spending.PublicKey()

	require.Equal(t, "234056d968baf183fe8d237d496d1c04188220cd33e8f8d14df9b84479736b20",
		hexOf(pub.X))
	require.Equal(t, "2624393fad9b71c04b3b14d8ac45202dbb4eaff4c2d1350c9453fc08d18651fe",
		hexOf(pub.Y))
}

func TestViewingPublicKey(t *testing.T) {
	viewing := ViewingKey(repeatKey(2))
	require.Equal(t, "8139770ea87d175f56a35466c34c7ecccb8d8a91b4ee37a25df60f5b8fc9b394",
		viewing.PublicKey().Hex())
}

func TestMasterPublicKey(t *testing.T) {
	spending := SpendingKey(repeatKey(1))
	viewing := ViewingKey(repeatKey(2))

	master := NewMasterPublicKey(spending.PublicKey(), viewing.NullifyingKey())
	require.Equal(t, "21532725e608f56b562244d61ef15288a3ab3f01b7790586f9ed0c2e7baa6b29",
		master.Hex())
}

func TestNullifyingKey(t *testing.T) {
	viewing := ViewingKey(repeatKey(2))
	require.Equal(t, "186ab99ece60e112b37c660eaf7ca6dbcb04dc434e04aa5e106e94abc6c81936",
		viewing.NullifyingKey().Hex())
}

func TestSharedKeySymmetry(t *testing.T) {
	ours := ViewingKey(repeatKey(2))
	theirs := ViewingKey(repeatKey(3))

	ab, err := ours.DeriveSharedKey(theirs.PublicKey())
	require.NoError(t, err)
	ba, err := theirs.DeriveSharedKey(ours.PublicKey())
	require.NoError(t, err)

	require.Equal(t, "b8d9b27ccb6161ba969a646553ad1b7221b4113ac83bdd603985ce44923456f1", ab.Hex())
	require.Equal(t, ab.Hex(), ba.Hex())
}

func TestBlindedKeys(t *testing.T) {
	ours := ViewingKey(repeatKey(2))
	theirs := ViewingKey(repeatKey(3))

	blinded, theirBlinded, err := BlindViewingKeys(
		ours.PublicKey(), theirs.PublicKey(), repeatKey(4), repeatKey(5))
	require.NoError(t, err)

	require.Equal(t, "2ed993356db2b8b5e573da394c2317942c9a1a72eb9a8dfd02705cc56cb1423b",
		blinded.Hex())
	require.Equal(t, "90878634485e306dc7f31840362fc43532313cea73c9006a19b0718e298ffcce",
		theirBlinded.Hex())
}

func TestSharedKeyBlinded(t *testing.T) {
	ours := ViewingKey(repeatKey(2))
	theirs := ViewingKey(repeatKey(3))

	blinded, theirBlinded, err := BlindViewingKeys(
		ours.PublicKey(), theirs.PublicKey(), repeatKey(4), repeatKey(5))
	require.NoError(t, err)

	ab, err := ours.DeriveSharedKeyBlinded(theirBlinded)
	require.NoError(t, err)
	ba, err := theirs.DeriveSharedKeyBlinded(blinded)
	require.NoError(t, err)

	require.Equal(t, ab.Hex(), ba.Hex())
	require.Equal(t, "2d33b7ea38413dfd631149f00dd0745f06dc06cd8112a6a174c73fa97af8d5a0", ab.Hex())
}

func TestDeriveSharedSecretSymmetry(t *testing.T) {
	broadcasterKey, err := ParseKeyHex(
		"dcdf3ddbf82cb2194571d5c3411468adfced2909ceea3dee59205cdf81a4f945")
	require.NoError(t, err)
	randomKey, err := ParseKeyHex(
		"090f9cf59c24447df87142aa7918bedabb19a10c038ecdb4e0e4355d1cf6a410")
	require.NoError(t, err)

	broadcaster := ViewingKey(broadcasterKey)
	random := ViewingKey(randomKey)

	shared1, err := random.DeriveSharedSecret(broadcaster.PublicKey())
	require.NoError(t, err)
	shared2, err := broadcaster.DeriveSharedSecret(random.PublicKey())
	require.NoError(t, err)

	require.Equal(t, shared1.Hex(), shared2.Hex())
	require.Equal(t, "d9cdcb9174f52e134780a77cfca0c1db973940a55b87a8b9616f25436033ff48",
		shared1.Hex())
}

func TestSpendingSign(t *testing.T) {
	spending := SpendingKey(repeatKey(1))

	sig, err := spending.Sign(uint256.NewInt(42))
	require.NoError(t, err)

	expectedRX, err := uint256.FromDecimal(
		"14021219264176114698656285200925183015004950119566700345808626607587007258652")
	require.NoError(t, err)
	expectedRY, err := uint256.FromDecimal(
		"722845713210012403245093368934831287436133400350912012728600696178479669333")
	require.NoError(t, err)
	expectedS, err := uint256.FromDecimal(
		"719423466960100536815219984091461547618047721989819848960065284130969424009")
	require.NoError(t, err)

	require.True(t, sig.R8X.Eq(expectedRX))
	require.True(t, sig.R8Y.Eq(expectedRY))
	require.True(t, sig.S.Eq(expectedS))
}

func TestParseKeyHex(t *testing.T) {
	key, err := ParseKeyHex("0x" + ViewingKey(repeatKey(9)).Hex())
	require.NoError(t, err)
	require.Equal(t, repeatKey(9), key)

	_, err = ParseKeyHex("f00")
	require.ErrorIs(t, err, ErrInvalidKeyHex)
}

func hexOf(b [32]byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, c := range b {
		out[2*i] = digits[c>>4]
		out[2*i+1] = digits[c&0xf]
	}
	return string(out)
}
