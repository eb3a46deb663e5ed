// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package abis

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/accounts/abi"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/crypto"

	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/circuit"
	"github.com/luxfi/veil/field"
)

// UnshieldType is the contract's unshield mode enum.
type UnshieldType uint8

const (
	UnshieldNone UnshieldType = iota
	UnshieldNormal
	UnshieldRedirect
)

// TokenData is the wire form of an asset descriptor.
type TokenData struct {
	TokenType    uint8          `abi:"tokenType"`
	TokenAddress common.Address `abi:"tokenAddress"`
	TokenSubID   *big.Int       `abi:"tokenSubID"`
}

// CommitmentPreimage is the cleartext preimage of a shield or unshield
// commitment.
type CommitmentPreimage struct {
	Npk   [32]byte  `abi:"npk"`
	Token TokenData `abi:"token"`
	Value *big.Int  `abi:"value"`
}

// ShieldCiphertext is the encrypted bundle attached to a shield request.
type ShieldCiphertext struct {
	EncryptedBundle [3][32]byte `abi:"encryptedBundle"`
	ShieldKey       [32]byte    `abi:"shieldKey"`
}

// ShieldRequest is one element of a shield() call.
type ShieldRequest struct {
	Preimage   CommitmentPreimage `abi:"preimage"`
	Ciphertext ShieldCiphertext   `abi:"ciphertext"`
}

// CommitmentCiphertext is the encrypted note attached to a transact output.
// Ciphertext order: IV & tag (16 bytes each), then the three GCM blocks.
type CommitmentCiphertext struct {
	Ciphertext                [4][32]byte `abi:"ciphertext"`
	BlindedSenderViewingKey   [32]byte    `abi:"blindedSenderViewingKey"`
	BlindedReceiverViewingKey [32]byte    `abi:"blindedReceiverViewingKey"`
	AnnotationData            []byte      `abi:"annotationData"`
	Memo                      []byte      `abi:"memo"`
}

// BoundParams are the invariant parameters of an operation, bound into the
// SNARK via their keccak hash.
type BoundParams struct {
	TreeNumber           uint16                 `abi:"treeNumber"`
	MinGasPrice          *big.Int               `abi:"minGasPrice"`
	Unshield             uint8                  `abi:"unshield"`
	ChainID              uint64                 `abi:"chainID"`
	AdaptContract        common.Address         `abi:"adaptContract"`
	AdaptParams          [32]byte               `abi:"adaptParams"`
	CommitmentCiphertext []CommitmentCiphertext `abi:"commitmentCiphertext"`
}

// G1Point is a BN254 G1 point in contract form.
type G1Point struct {
	X *big.Int `abi:"x"`
	Y *big.Int `abi:"y"`
}

// G2Point is a BN254 G2 point in contract form. Field-extension encoding is
// X[0]*z + X[1].
type G2Point struct {
	X [2]*big.Int `abi:"x"`
	Y [2]*big.Int `abi:"y"`
}

// SnarkProof is a Groth16 proof in contract form.
type SnarkProof struct {
	A G1Point `abi:"a"`
	B G2Point `abi:"b"`
	C G1Point `abi:"c"`
}

// Transaction is one element of a transact() call.
type Transaction struct {
	Proof            SnarkProof         `abi:"proof"`
	MerkleRoot       [32]byte           `abi:"merkleRoot"`
	Nullifiers       [][32]byte         `abi:"nullifiers"`
	Commitments      [][32]byte         `abi:"commitments"`
	BoundParams      BoundParams        `abi:"boundParams"`
	UnshieldPreimage CommitmentPreimage `abi:"unshieldPreimage"`
}

// ShieldEvent mirrors the Shield log.
type ShieldEvent struct {
	TreeNumber       *big.Int
	StartPosition    *big.Int
	Commitments      []CommitmentPreimage
	ShieldCiphertext []ShieldCiphertext
	Fees             []*big.Int
}

// TransactEvent mirrors the Transact log.
type TransactEvent struct {
	TreeNumber    *big.Int
	StartPosition *big.Int
	Hash          [][32]byte
	Ciphertext    []CommitmentCiphertext
}

// NullifiedEvent mirrors the Nullified log.
type NullifiedEvent struct {
	TreeNumber uint16
	Nullifier  [][32]byte
}

// UnshieldEvent mirrors the Unshield log.
type UnshieldEvent struct {
	To     common.Address
	Token  TokenData
	Amount *big.Int
	Fee    *big.Int
}

const tokenDataComponentsJSON = `[
  {"name":"tokenType","type":"uint8"},
  {"name":"tokenAddress","type":"address"},
  {"name":"tokenSubID","type":"uint256"}]`

const commitmentPreimageComponentsJSON = `[
  {"name":"npk","type":"bytes32"},
  {"name":"token","type":"tuple","components":` + tokenDataComponentsJSON + `},
  {"name":"value","type":"uint120"}]`

const commitmentCiphertextComponentsJSON = `[
  {"name":"ciphertext","type":"bytes32[4]"},
  {"name":"blindedSenderViewingKey","type":"bytes32"},
  {"name":"blindedReceiverViewingKey","type":"bytes32"},
  {"name":"annotationData","type":"bytes"},
  {"name":"memo","type":"bytes"}]`

const boundParamsComponentsJSON = `[
  {"name":"treeNumber","type":"uint16"},
  {"name":"minGasPrice","type":"uint72"},
  {"name":"unshield","type":"uint8"},
  {"name":"chainID","type":"uint64"},
  {"name":"adaptContract","type":"address"},
  {"name":"adaptParams","type":"bytes32"},
  {"name":"commitmentCiphertext","type":"tuple[]","components":` + commitmentCiphertextComponentsJSON + `}]`

const railgunABIJSON = `[
  {"type":"event","name":"Shield","inputs":[
    {"name":"treeNumber","type":"uint256","indexed":false},
    {"name":"startPosition","type":"uint256","indexed":false},
    {"name":"commitments","type":"tuple[]","indexed":false,"components":` + commitmentPreimageComponentsJSON + `},
    {"name":"shieldCiphertext","type":"tuple[]","indexed":false,"components":[
      {"name":"encryptedBundle","type":"bytes32[3]"},
      {"name":"shieldKey","type":"bytes32"}]},
    {"name":"fees","type":"uint256[]","indexed":false}]},
  {"type":"event","name":"Transact","inputs":[
    {"name":"treeNumber","type":"uint256","indexed":false},
    {"name":"startPosition","type":"uint256","indexed":false},
    {"name":"hash","type":"bytes32[]","indexed":false},
    {"name":"ciphertext","type":"tuple[]","indexed":false,"components":` + commitmentCiphertextComponentsJSON + `}]},
  {"type":"event","name":"Nullified","inputs":[
    {"name":"treeNumber","type":"uint16","indexed":false},
    {"name":"nullifier","type":"bytes32[]","indexed":false}]},
  {"type":"event","name":"Unshield","inputs":[
    {"name":"to","type":"address","indexed":false},
    {"name":"token","type":"tuple","indexed":false,"components":` + tokenDataComponentsJSON + `},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"fee","type":"uint256","indexed":false}]},
  {"type":"function","name":"shield","stateMutability":"nonpayable","inputs":[
    {"name":"_shieldRequests","type":"tuple[]","components":[
      {"name":"preimage","type":"tuple","components":` + commitmentPreimageComponentsJSON + `},
      {"name":"ciphertext","type":"tuple","components":[
        {"name":"encryptedBundle","type":"bytes32[3]"},
        {"name":"shieldKey","type":"bytes32"}]}]}],"outputs":[]},
  {"type":"function","name":"transact","stateMutability":"nonpayable","inputs":[
    {"name":"_transactions","type":"tuple[]","components":[
      {"name":"proof","type":"tuple","components":[
        {"name":"a","type":"tuple","components":[{"name":"x","type":"uint256"},{"name":"y","type":"uint256"}]},
        {"name":"b","type":"tuple","components":[{"name":"x","type":"uint256[2]"},{"name":"y","type":"uint256[2]"}]},
        {"name":"c","type":"tuple","components":[{"name":"x","type":"uint256"},{"name":"y","type":"uint256"}]}]},
      {"name":"merkleRoot","type":"bytes32"},
      {"name":"nullifiers","type":"bytes32[]"},
      {"name":"commitments","type":"bytes32[]"},
      {"name":"boundParams","type":"tuple","components":` + boundParamsComponentsJSON + `},
      {"name":"unshieldPreimage","type":"tuple","components":` + commitmentPreimageComponentsJSON + `}]}],"outputs":[]},
  {"type":"function","name":"rootHistory","stateMutability":"view","inputs":[
    {"name":"treeNumber","type":"uint256"},
    {"name":"root","type":"bytes32"}],"outputs":[{"name":"","type":"bool"}]}]`

// Railgun is the shielded-pool smart wallet ABI surface.
var Railgun = ParseABI(railgunABIJSON)

// boundParamsArgs packs a lone BoundParams tuple, for hashing.
var boundParamsArgs = func() abi.Arguments {
	t, err := abi.NewType("tuple", "", []abi.ArgumentMarshaling{
		{Name: "treeNumber", Type: "uint16"},
		{Name: "minGasPrice", Type: "uint72"},
		{Name: "unshield", Type: "uint8"},
		{Name: "chainID", Type: "uint64"},
		{Name: "adaptContract", Type: "address"},
		{Name: "adaptParams", Type: "bytes32"},
		{Name: "commitmentCiphertext", Type: "tuple[]", Components: []abi.ArgumentMarshaling{
			{Name: "ciphertext", Type: "bytes32[4]"},
			{Name: "blindedSenderViewingKey", Type: "bytes32"},
			{Name: "blindedReceiverViewingKey", Type: "bytes32"},
			{Name: "annotationData", Type: "bytes"},
			{Name: "memo", Type: "bytes"},
		}},
	})
	if err != nil {
		panic(err)
	}
	return abi.Arguments{{Type: t}}
}()

// NewBoundParams assembles the bound parameters of one operation.
func NewBoundParams(treeNumber uint16, minGasPrice *uint256.Int, unshield UnshieldType,
	chainID uint64, adaptContract common.Address, adaptParams [32]byte,
	ciphertexts []CommitmentCiphertext) BoundParams {
	if ciphertexts == nil {
		ciphertexts = []CommitmentCiphertext{}
	}
	return BoundParams{
		TreeNumber:           treeNumber,
		MinGasPrice:          minGasPrice.ToBig(),
		Unshield:             uint8(unshield),
		ChainID:              chainID,
		AdaptContract:        adaptContract,
		AdaptParams:          adaptParams,
		CommitmentCiphertext: ciphertexts,
	}
}

// Hash keccak-hashes the ABI encoding of the bound parameters and reduces
// the result modulo the scalar field.
func (bp BoundParams) Hash() (uint256.Int, error) {
	encoded, err := boundParamsArgs.Pack(bp)
	if err != nil {
		return uint256.Int{}, err
	}
	return HashToScalar(encoded), nil
}

// HashToScalar is keccak256(data) mod Q.
func HashToScalar(data []byte) uint256.Int {
	h := new(big.Int).SetBytes(crypto.Keccak256(data))
	h.Mod(h, field.Q)
	return field.MustUint(h)
}

// NewTokenData converts a typed asset id to its wire form.
func NewTokenData(a asset.ID) TokenData {
	return TokenData{
		TokenType:    uint8(a.Type),
		TokenAddress: a.Address,
		TokenSubID:   a.SubID.ToBig(),
	}
}

// AssetID converts a wire token descriptor to a typed asset id.
func (td TokenData) AssetID() asset.ID {
	var sub uint256.Int
	if td.TokenSubID != nil {
		sub = field.MustUint(td.TokenSubID)
	}
	return asset.ID{Type: asset.TokenType(td.TokenType), Address: td.TokenAddress, SubID: sub}
}

// NewSnarkProof maps a prover proof to contract form. The G2 coordinate
// pairs are swapped element-wise; the on-chain verifier requires this
// ordering and it must not be "fixed".
func NewSnarkProof(p circuit.Proof) SnarkProof {
	return SnarkProof{
		A: G1Point{X: p.A.X.ToBig(), Y: p.A.Y.ToBig()},
		B: G2Point{
			X: [2]*big.Int{p.B.X[1].ToBig(), p.B.X[0].ToBig()},
			Y: [2]*big.Int{p.B.Y[1].ToBig(), p.B.Y[0].ToBig()},
		},
		C: G1Point{X: p.C.X.ToBig(), Y: p.C.Y.ToBig()},
	}
}

// PackShield builds shield() calldata.
func PackShield(requests []ShieldRequest) ([]byte, error) {
	return Railgun.Pack("shield", requests)
}

// PackTransact builds transact() calldata.
func PackTransact(transactions []Transaction) ([]byte, error) {
	return Railgun.Pack("transact", transactions)
}
