// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package babyjub

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/stretchr/testify/require"
)

func frFromString(t *testing.T, s string) fr.Element {
	t.Helper()
	var e fr.Element
	_, err := e.SetString(s)
	require.NoError(t, err)
	return e
}

func TestPublicKey(t *testing.T) {
	var sk PrivateKey
	for i := range sk {
		sk[i] = 1
	}

	pk := sk.Public()

	expectedX := frFromString(t,
		"15944627324083773346390189001500210680939402028015651549526524193195473201952")
	expectedY := frFromString(t,
		"17251889856797524237981285661279357764562574766148660962999867467495459148286")

	require.True(t, pk.X.Equal(&expectedX))
	require.True(t, pk.Y.Equal(&expectedY))
}

func TestSign(t *testing.T) {
	var sk PrivateKey
	for i := range sk {
		sk[i] = 1
	}

	sig, err := sk.Sign(big.NewInt(12345))
	require.NoError(t, err)

	expectedRX := frFromString(t,
		"16645010557452456701448959088580661016911463823507331009854769009925791698150")
	expectedRY := frFromString(t,
		"10450145626571632149073824042351857150010617503888090720817471417491973277265")
	expectedS, ok := new(big.Int).SetString(
		"2075797490157831809002838810523428353652008808411614949641351030844510230852", 10)
	require.True(t, ok)

	require.True(t, sig.R8.X.Equal(&expectedRX))
	require.True(t, sig.R8.Y.Equal(&expectedRY))
	require.Equal(t, 0, sig.S.Cmp(expectedS))
}

func TestSignRejectsOutOfField(t *testing.T) {
	var sk PrivateKey
	sk[0] = 1

	tooBig := new(big.Int).Lsh(big.NewInt(1), 254)
	_, err := sk.Sign(tooBig)
	require.ErrorIs(t, err, ErrMsgOutsideField)
}

func TestSignVerifies(t *testing.T) {
	var sk PrivateKey
	for i := range sk {
		sk[i] = 7
	}

	msg := big.NewInt(99887766)
	sig, err := sk.Sign(msg)
	require.NoError(t, err)
	require.True(t, Verify(sk.Public(), msg, sig))

	// A different message must not verify.
	require.False(t, Verify(sk.Public(), big.NewInt(1), sig))
}

func TestAddIdentity(t *testing.T) {
	p := B8().Projective()
	id := Identity().Projective()

	sum := p.Add(id).Affine()
	base := B8()
	require.True(t, sum.X.Equal(&base.X))
	require.True(t, sum.Y.Equal(&base.Y))
}

func TestMulScalarMatchesRepeatedAdd(t *testing.T) {
	five := B8().MulScalar(big.NewInt(5))

	acc := Identity().Projective()
	for i := 0; i < 5; i++ {
		acc = acc.Add(B8().Projective())
	}
	expected := acc.Affine()

	require.True(t, five.X.Equal(&expected.X))
	require.True(t, five.Y.Equal(&expected.Y))
}

func TestBasePointOnCurveAndInSubgroup(t *testing.T) {
	require.True(t, B8().OnCurve())
	require.True(t, B8().InSubgroup())
}
