// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"fmt"
	"io"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/address"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/keys"
)

// applicationIdentifier tags the annotation data of notes produced by this
// client, base-37 packed.
const applicationIdentifier = "veil go"

// encryptNote encrypts a transfer output into a CommitmentCiphertext.
//
// The sender and receiver viewing keys are blinded with a scalar derived
// from the note random (and, when blind is set, a fresh 15-byte sender
// random, so that the sender cannot be identified from the ciphertext). The
// GCM payload carries the receiver master key, the asset hash, random+value
// and the memo; the annotation data is CTR-encrypted to the sender only.
func encryptNote(receiver *address.Address, sharedRandom [16]byte, value *uint256.Int,
	a asset.ID, memo string, viewingKey keys.ViewingKey, blind bool, rand io.Reader) (abis.CommitmentCiphertext, error) {

	const outputType = 0

	appID, err := address.EncodeBase37(applicationIdentifier)
	if err != nil {
		return abis.CommitmentCiphertext{}, err
	}

	var senderRandom [15]byte
	if blind {
		if _, err := io.ReadFull(rand, senderRandom[:]); err != nil {
			return abis.CommitmentCiphertext{}, err
		}
	}

	var shared32, sender32 [32]byte
	copy(shared32[:16], sharedRandom[:])
	copy(sender32[:15], senderRandom[:])

	blindedSender, blindedReceiver, err := keys.BlindViewingKeys(
		viewingKey.PublicKey(), receiver.ViewingPubkey, shared32, sender32)
	if err != nil {
		return abis.CommitmentCiphertext{}, err
	}

	sharedKey, err := viewingKey.DeriveSharedKeyBlinded(blindedReceiver)
	if err != nil {
		return abis.CommitmentCiphertext{}, err
	}

	assetHash := a.Hash()
	assetWord := assetHash.Bytes32()

	var randomValue [32]byte
	copy(randomValue[:16], sharedRandom[:])
	valueWord := value.Bytes32()
	copy(randomValue[16:], valueWord[16:])

	master := receiver.MasterKey
	gcm, err := sharedKey.EncryptGCM([][]byte{
		master[:],
		assetWord[:],
		randomValue[:],
		[]byte(memo),
	}, rand)
	if err != nil {
		return abis.CommitmentCiphertext{}, err
	}

	// ctr_iv (16) | outputType (1) | senderRandom (15) | padding (16) | applicationIdentifier (16)
	var ctr0 [16]byte
	ctr0[0] = outputType
	copy(ctr0[1:], senderRandom[:])
	var ctr1 [16]byte

	viewingPub := viewingKey.PublicKey()
	ctr, err := keys.EncryptCTR([][]byte{ctr0[:], ctr1[:], appID[:]}, [32]byte(viewingPub), rand)
	if err != nil {
		return abis.CommitmentCiphertext{}, err
	}

	var out abis.CommitmentCiphertext
	copy(out.Ciphertext[0][:16], gcm.IV[:])
	copy(out.Ciphertext[0][16:], gcm.Tag[:])
	for i := 0; i < 3; i++ {
		if len(gcm.Data[i]) != 32 {
			return abis.CommitmentCiphertext{}, fmt.Errorf("railgun: unexpected ciphertext block length %d", len(gcm.Data[i]))
		}
		copy(out.Ciphertext[i+1][:], gcm.Data[i])
	}

	out.BlindedSenderViewingKey = [32]byte(blindedSender)
	out.BlindedReceiverViewingKey = [32]byte(blindedReceiver)

	annotation := make([]byte, 0, 64)
	annotation = append(annotation, ctr.IV[:]...)
	annotation = append(annotation, ctr.Data[0]...)
	annotation = append(annotation, ctr.Data[1]...)
	annotation = append(annotation, ctr.Data[2]...)
	out.AnnotationData = annotation
	out.Memo = gcm.Data[3]

	return out, nil
}
