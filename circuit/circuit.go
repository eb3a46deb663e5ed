// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package circuit defines the boundary with the external SNARK prover: the
// Groth16 proof shape, the named-signal input maps the witness calculator
// consumes, and the Prover interface.
package circuit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// G1Affine is a BN254 G1 point in the prover's representation.
type G1Affine struct {
	X uint256.Int
	Y uint256.Int
}

// G2Affine is a BN254 G2 point in the prover's representation.
type G2Affine struct {
	X [2]uint256.Int
	Y [2]uint256.Int
}

// Proof is a Groth16 triple. It serialises into the SnarkJS wire format:
// decimal strings, with pi_a / pi_b / pi_c arrays.
type Proof struct {
	A G1Affine
	B G2Affine
	C G1Affine
}

// Signals is a named map of flattened circuit inputs.
type Signals map[string][]uint256.Int

var (
	// ErrInvalidCircuit reports an unknown circuit name.
	ErrInvalidCircuit = errors.New("circuit: invalid circuit name")
	// ErrWitness reports a witness-generation failure.
	ErrWitness = errors.New("circuit: witness generation failed")
)

// Prover produces a Groth16 proof plus public inputs for a named circuit
// given its input signals. Implementations live outside this module (native
// arkworks/gnark provers, WASM witness calculators).
type Prover interface {
	Prove(ctx context.Context, circuitName string, inputs Signals) (Proof, []uint256.Int, error)
}

// Signal coerces a single value into a one-element signal vector.
func Signal(v uint256.Int) []uint256.Int {
	return []uint256.Int{v}
}

// SignalVec copies a slice of values into a signal vector.
func SignalVec(vs []uint256.Int) []uint256.Int {
	return append([]uint256.Int(nil), vs...)
}

// SignalMatrix flattens a slice of vectors into one signal vector.
func SignalMatrix(vss [][]uint256.Int) []uint256.Int {
	var out []uint256.Int
	for _, vs := range vss {
		out = append(out, vs...)
	}
	return out
}

type proofJSON struct {
	PiA [2]string    `json:"pi_a"`
	PiB [2][2]string `json:"pi_b"`
	PiC [2]string    `json:"pi_c"`
}

// MarshalJSON renders the proof in SnarkJS form.
func (p Proof) MarshalJSON() ([]byte, error) {
	return json.Marshal(proofJSON{
		PiA: [2]string{p.A.X.Dec(), p.A.Y.Dec()},
		PiB: [2][2]string{
			{p.B.X[0].Dec(), p.B.X[1].Dec()},
			{p.B.Y[0].Dec(), p.B.Y[1].Dec()},
		},
		PiC: [2]string{p.C.X.Dec(), p.C.Y.Dec()},
	})
}

// UnmarshalJSON parses a SnarkJS-form proof.
func (p *Proof) UnmarshalJSON(data []byte) error {
	var raw proofJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	parse := func(s string) (uint256.Int, error) {
		v, err := uint256.FromDecimal(s)
		if err != nil {
			return uint256.Int{}, fmt.Errorf("circuit: invalid proof element %q: %w", s, err)
		}
		return *v, nil
	}

	var err error
	if p.A.X, err = parse(raw.PiA[0]); err != nil {
		return err
	}
	if p.A.Y, err = parse(raw.PiA[1]); err != nil {
		return err
	}
	if p.B.X[0], err = parse(raw.PiB[0][0]); err != nil {
		return err
	}
	if p.B.X[1], err = parse(raw.PiB[0][1]); err != nil {
		return err
	}
	if p.B.Y[0], err = parse(raw.PiB[1][0]); err != nil {
		return err
	}
	if p.B.Y[1], err = parse(raw.PiB[1][1]); err != nil {
		return err
	}
	if p.C.X, err = parse(raw.PiC[0]); err != nil {
		return err
	}
	if p.C.Y, err = parse(raw.PiC[1]); err != nil {
		return err
	}
	return nil
}
