// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package babyjub implements the BabyJubJub twisted-Edwards curve
// A*x^2 + y^2 = 1 + D*x^2*y^2 over the BN254 scalar field, together with the
// circomlib-compatible EdDSA scheme built on it.
package babyjub

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/luxfi/veil/field"
)

// Curve coefficients.
const (
	A = 168700
	D = 168696
)

// Point is an affine curve point.
type Point struct {
	X, Y fr.Element
}

// ProjPoint is a projective curve point (x, y, z).
type ProjPoint struct {
	X, Y, Z fr.Element
}

var (
	aElem, dElem fr.Element
	b8           Point
)

func init() {
	aElem.SetUint64(A)
	dElem.SetUint64(D)
	b8.X.SetString("5299619240641551281634865583518297030282874472190772894086521144482721001553")
	b8.Y.SetString("16950150798460657717958625567821834550301663161624707787222815936182638968203")
}

// B8 returns the standard base point of the prime-order subgroup.
func B8() Point {
	return b8
}

// Identity returns the neutral element (0, 1).
func Identity() Point {
	var p Point
	p.Y.SetOne()
	return p
}

// Projective lifts p to projective coordinates.
func (p Point) Projective() ProjPoint {
	var out ProjPoint
	out.X = p.X
	out.Y = p.Y
	out.Z.SetOne()
	return out
}

// Affine recovers the affine form, returning (0, 0) for z == 0.
func (p ProjPoint) Affine() Point {
	var out Point
	if p.Z.IsZero() {
		return out
	}

	var zinv fr.Element
	zinv.Inverse(&p.Z)
	out.X.Mul(&p.X, &zinv)
	out.Y.Mul(&p.Y, &zinv)
	return out
}

// Add computes p + q using the add-2008-bbjlp formulas.
// https://hyperelliptic.org/EFD/g1p/auto-twisted-projective.html#addition-add-2008-bbjlp
func (p ProjPoint) Add(q ProjPoint) ProjPoint {
	var a, b, c, d, e, f, g fr.Element
	a.Mul(&p.Z, &q.Z)
	b.Square(&a)
	c.Mul(&p.X, &q.X)
	d.Mul(&p.Y, &q.Y)

	e.Mul(&dElem, &c)
	e.Mul(&e, &d)

	f.Sub(&b, &e)
	g.Add(&b, &e)

	var aux, x3 fr.Element
	aux.Add(&p.X, &p.Y)
	var qxy fr.Element
	qxy.Add(&q.X, &q.Y)
	aux.Mul(&aux, &qxy)
	aux.Sub(&aux, &c)
	aux.Sub(&aux, &d)
	x3.Mul(&a, &f)
	x3.Mul(&x3, &aux)

	var ac, dac, y3 fr.Element
	ac.Mul(&aElem, &c)
	dac.Sub(&d, &ac)
	y3.Mul(&a, &g)
	y3.Mul(&y3, &dac)

	var z3 fr.Element
	z3.Mul(&f, &g)

	return ProjPoint{X: x3, Y: y3, Z: z3}
}

// MulScalar computes n * p by double-and-add over the little-endian bits of n.
func (p Point) MulScalar(n *big.Int) Point {
	r := ProjPoint{}
	r.Y.SetOne()
	r.Z.SetOne()

	exp := p.Projective()
	bits := n.BitLen()
	for i := 0; i < bits; i++ {
		if n.Bit(i) == 1 {
			r = r.Add(exp)
		}
		exp = exp.Add(exp)
	}

	return r.Affine()
}

// InSubgroup reports whether p lies in the prime-order subgroup.
func (p Point) InSubgroup() bool {
	r := p.MulScalar(field.SubOrder)
	return r.X.IsZero() && r.Y.IsOne()
}

// OnCurve reports whether p satisfies the curve equation.
func (p Point) OnCurve() bool {
	var x2, y2, lhs, rhs fr.Element
	x2.Square(&p.X)
	y2.Square(&p.Y)
	lhs.Mul(&aElem, &x2)
	lhs.Add(&lhs, &y2)
	rhs.Mul(&dElem, &x2)
	rhs.Mul(&rhs, &y2)
	var one fr.Element
	one.SetOne()
	rhs.Add(&rhs, &one)
	return lhs.Equal(&rhs)
}

// UnpackPoint decodes a 32-byte compressed point: little-endian y with the
// sign of x in the high bit of byte 31. Returns false if y is out of range or
// x^2 has no square root. The root below Q/2 is selected before the sign bit
// is applied, matching the circuit's deterministic square root.
func UnpackPoint(buf [32]byte) (Point, bool) {
	sign := buf[31]&0x80 != 0
	buf[31] &= 0x7f

	yInt := field.FromBytesLE(buf[:])
	if !field.InField(&yInt) {
		return Point{}, false
	}

	var y, y2, num, den, x2 fr.Element
	y = field.ToElement(&yInt)
	y2.Square(&y)

	// x^2 = (1 - y^2) / (A - D*y^2) from the curve equation.
	var one fr.Element
	one.SetOne()
	num.Sub(&one, &y2)
	den.Mul(&dElem, &y2)
	den.Sub(&aElem, &den)
	if den.IsZero() {
		return Point{}, false
	}
	den.Inverse(&den)
	x2.Mul(&num, &den)

	if x2.Legendre() == -1 {
		return Point{}, false
	}
	var x fr.Element
	x.Sqrt(&x2)

	if field.ElementToBig(&x).Cmp(field.HalfQ) > 0 {
		x.Neg(&x)
	}
	if sign {
		x.Neg(&x)
	}

	return Point{X: x, Y: y}, true
}
