// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"io"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/poseidon"
)

// ShieldBuilder assembles shield deposits. Shield transactions are
// self-broadcast; no proof is required.
type ShieldBuilder struct {
	chain   ChainConfig
	shields []shieldIntent
}

type shieldIntent struct {
	recipient address.Address
	token     asset.ID
	value     uint256.Int
}

// NewShieldBuilder builds a shield builder for a chain.
func NewShieldBuilder(chain ChainConfig) *ShieldBuilder {
	return &ShieldBuilder{chain: chain}
}

// Shield queues a deposit to a shielded address.
func (b *ShieldBuilder) Shield(recipient address.Address, token asset.ID, value *uint256.Int) *ShieldBuilder {
	b.shields = append(b.shields, shieldIntent{recipient: recipient, token: token, value: *value})
	return b
}

// Build packs the queued deposits into shield() calldata.
func (b *ShieldBuilder) Build(rand io.Reader) (TxData, error) {
	requests := make([]abis.ShieldRequest, len(b.shields))
	for i, intent := range b.shields {
		req, err := createShieldRequest(&intent.recipient, intent.token, &intent.value, rand)
		if err != nil {
			return TxData{}, err
		}
		requests[i] = req
	}

	calldata, err := abis.PackShield(requests)
	if err != nil {
		return TxData{}, err
	}

	return NewTxData(b.chain.SmartWallet, calldata, nil), nil
}

// createShieldRequest builds one shield request: a fresh ephemeral shield
// key, the note npk from fresh randomness, the GCM-encrypted random bundle
// and the CTR-encrypted receiver viewing key.
func createShieldRequest(recipient *address.Address, token asset.ID, value *uint256.Int,
	rand io.Reader) (abis.ShieldRequest, error) {

	var shieldKey keys.ViewingKey
	if _, err := io.ReadFull(rand, shieldKey[:]); err != nil {
		return abis.ShieldRequest{}, err
	}
	// Keep the ephemeral key in the BN254 range, like every generated key.
	shieldKey[0] &= 0x1F

	sharedKey, err := shieldKey.DeriveSharedKey(recipient.ViewingPubkey)
	if err != nil {
		return abis.ShieldRequest{}, err
	}

	var randomSeed [16]byte
	if _, err := io.ReadFull(rand, randomSeed[:]); err != nil {
		return abis.ShieldRequest{}, err
	}

	var randomWord uint256.Int
	randomWord.SetBytes(randomSeed[:])
	npk := poseidon.MustHash(recipient.MasterKey.Uint(), randomWord)

	gcm, err := sharedKey.EncryptGCM([][]byte{randomSeed[:]}, rand)
	if err != nil {
		return abis.ShieldRequest{}, err
	}

	receiverKey := recipient.ViewingPubkey
	ctr, err := shieldKey.EncryptCTR([][]byte{receiverKey[:]}, rand)
	if err != nil {
		return abis.ShieldRequest{}, err
	}

	shieldPub := shieldKey.PublicKey()

	// iv (16) | tag (16)
	// random (16) | ctr iv (16)
	// receiver_viewing_key (32)
	var bundle [3][32]byte
	copy(bundle[0][:16], gcm.IV[:])
	copy(bundle[0][16:], gcm.Tag[:])
	copy(bundle[1][:16], gcm.Data[0])
	copy(bundle[1][16:], ctr.IV[:])
	copy(bundle[2][:], ctr.Data[0])

	return abis.ShieldRequest{
		Preimage: abis.CommitmentPreimage{
			Npk:   npk.Bytes32(),
			Token: abis.NewTokenData(token),
			Value: value.ToBig(),
		},
		Ciphertext: abis.ShieldCiphertext{
			EncryptedBundle: bundle,
			ShieldKey:       [32]byte(shieldPub),
		},
	}, nil
}
