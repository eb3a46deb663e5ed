// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package railgun

import (
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/holiman/uint256"

	"github.com/luxfi/veil/abis"
	"github.com/luxfi/veil/asset"
	"github.com/luxfi/veil/keys"
	"github.com/luxfi/veil/poseidon"
)

// UtxoKind distinguishes how a note entered the pool.
type UtxoKind uint8

const (
	// KindShield marks notes created by a shield deposit.
	KindShield UtxoKind = iota
	// KindTransact marks notes created by a shielded transfer.
	KindTransact
)

// Note is the capability shared by every note shape: it carries an asset and
// value, and hashes to an on-chain commitment.
type Note interface {
	Asset() asset.ID
	Value() *uint256.Int
	Memo() string
	// Hash is the commitment leaf value.
	Hash() uint256.Int
	// NotePublicKey is the NPK bound into the commitment.
	NotePublicKey() uint256.Int
}

// IncludedNote refines Note for notes that are on-chain in the commitment
// tree and can be spent.
type IncludedNote interface {
	Note
	TreeNumber() uint32
	LeafIndex() uint32
	SpendingPubkey() [2]uint256.Int
	ViewingPubkey() keys.ViewingPublicKey
	NullifyingKey() uint256.Int
	// Nullifier derives the spend tag for the note at the given leaf index.
	Nullifier(leafIndex *uint256.Int) uint256.Int
	Random() [16]byte
	BlindedCommitment() uint256.Int
}

// SignableNote refines Note with the operation-signing capability.
type SignableNote interface {
	// Sign poseidon-hashes inputs and signs the digest with the note
	// owner's spending key, returning (R8.x, R8.y, s).
	Sign(inputs []uint256.Int) ([3]uint256.Int, error)
}

// EncryptableNote refines Note with one-shot encryption to its receiver.
type EncryptableNote interface {
	Note
	Encrypt(rand io.Reader) (abis.CommitmentCiphertext, error)
}

var (
	// ErrNoSigner reports a signing attempt on a note without key material.
	ErrNoSigner = errors.New("railgun: note has no signer")
)

// UtxoNote is an on-chain note owned by a tracked account. Signer may be nil
// for notes reconstructed from a serialised snapshot; such notes can be
// indexed but not signed.
type UtxoNote struct {
	treeNumber uint32
	leafIndex  uint32

	spendingPubkey keys.SpendingPublicKey
	viewingPubkey  keys.ViewingPublicKey

	random [16]byte
	value  uint256.Int
	asset  asset.ID
	memo   string
	kind   UtxoKind

	hash              uint256.Int
	npk               uint256.Int
	nullifyingKey     uint256.Int
	blindedCommitment uint256.Int

	signer Signer
}

// NewUtxoNote materialises a note owned by signer at the given position.
func NewUtxoNote(treeNumber, leafIndex uint32, signer Signer, a asset.ID,
	value *uint256.Int, random [16]byte, memo string, kind UtxoKind) *UtxoNote {

	spendingPub := signer.SpendingKey().PublicKey()
	viewingPub := signer.ViewingKey().PublicKey()
	nullifyingKey := signer.ViewingKey().NullifyingKey().Uint()
	master := keys.NewMasterPublicKey(spendingPub, signer.ViewingKey().NullifyingKey())

	npk := noteRandomPublicKey(master, random)
	assetHash := a.Hash()
	hash := poseidon.MustHash(npk, assetHash, *value)
	blinded := blindedCommitment(hash, npk, treeNumber, leafIndex)

	return &UtxoNote{
		treeNumber:        treeNumber,
		leafIndex:         leafIndex,
		spendingPubkey:    spendingPub,
		viewingPubkey:     viewingPub,
		random:            random,
		value:             *value,
		asset:             a,
		memo:              memo,
		kind:              kind,
		hash:              hash,
		npk:               npk,
		nullifyingKey:     nullifyingKey,
		blindedCommitment: blinded,
		signer:            signer,
	}
}

// noteRandomPublicKey computes Poseidon(masterPub, random).
func noteRandomPublicKey(master keys.MasterPublicKey, random [16]byte) uint256.Int {
	var r uint256.Int
	r.SetBytes(random[:])
	return poseidon.MustHash(master.Uint(), r)
}

// blindedCommitment computes Poseidon(hash, npk, tree*2^16 + index).
func blindedCommitment(hash, npk uint256.Int, treeNumber, leafIndex uint32) uint256.Int {
	pos := uint256.NewInt(uint64(treeNumber)*65536 + uint64(leafIndex))
	return poseidon.MustHash(hash, npk, *pos)
}

// Asset returns the note's asset.
func (n *UtxoNote) Asset() asset.ID { return n.asset }

// Value returns the note's value.
func (n *UtxoNote) Value() *uint256.Int { v := n.value; return &v }

// Memo returns the note's memo text.
func (n *UtxoNote) Memo() string { return n.memo }

// Hash returns the commitment leaf value.
func (n *UtxoNote) Hash() uint256.Int { return n.hash }

// NotePublicKey returns the NPK.
func (n *UtxoNote) NotePublicKey() uint256.Int { return n.npk }

// TreeNumber returns the commitment tree holding the note.
func (n *UtxoNote) TreeNumber() uint32 { return n.treeNumber }

// LeafIndex returns the note's leaf position.
func (n *UtxoNote) LeafIndex() uint32 { return n.leafIndex }

// Kind returns how the note entered the pool.
func (n *UtxoNote) Kind() UtxoKind { return n.kind }

// SpendingPubkey returns the owner's spending public key coordinates.
func (n *UtxoNote) SpendingPubkey() [2]uint256.Int {
	return [2]uint256.Int{n.spendingPubkey.XUint(), n.spendingPubkey.YUint()}
}

// ViewingPubkey returns the owner's viewing public key.
func (n *UtxoNote) ViewingPubkey() keys.ViewingPublicKey { return n.viewingPubkey }

// NullifyingKey returns the owner's nullifying key.
func (n *UtxoNote) NullifyingKey() uint256.Int { return n.nullifyingKey }

// Nullifier derives Poseidon(nullifyingKey, leafIndex).
func (n *UtxoNote) Nullifier(leafIndex *uint256.Int) uint256.Int {
	return poseidon.MustHash(n.nullifyingKey, *leafIndex)
}

// Random returns the note's 16-byte randomness.
func (n *UtxoNote) Random() [16]byte { return n.random }

// BlindedCommitment returns Poseidon(hash, npk, globalPosition).
func (n *UtxoNote) BlindedCommitment() uint256.Int { return n.blindedCommitment }

// Signer returns the owning signer, or nil for snapshot-restored notes.
func (n *UtxoNote) Signer() Signer { return n.signer }

// Sign poseidon-hashes inputs and signs with the owner's spending key.
func (n *UtxoNote) Sign(inputs []uint256.Int) ([3]uint256.Int, error) {
	if n.signer == nil {
		return [3]uint256.Int{}, ErrNoSigner
	}

	digest, err := poseidon.Hash(inputs)
	if err != nil {
		return [3]uint256.Int{}, err
	}
	sig, err := n.signer.Sign(&digest)
	if err != nil {
		return [3]uint256.Int{}, err
	}
	return [3]uint256.Int{sig.R8X, sig.R8Y, sig.S}, nil
}

// WithoutSigner returns a copy with the key material stripped, for
// serialised snapshots.
func (n *UtxoNote) WithoutSigner() *UtxoNote {
	out := *n
	out.signer = nil
	return &out
}

// WithSigner reattaches a signer to a snapshot-restored note.
func (n *UtxoNote) WithSigner(signer Signer) *UtxoNote {
	out := *n
	out.signer = signer
	return &out
}

// Equal compares note identity by position and commitment.
func (n *UtxoNote) Equal(other *UtxoNote) bool {
	return n.treeNumber == other.treeNumber &&
		n.leafIndex == other.leafIndex &&
		n.hash.Eq(&other.hash)
}

func (n *UtxoNote) String() string {
	return fmt.Sprintf("UtxoNote(tree: %d, leaf: %d, asset: %s, value: %s)",
		n.treeNumber, n.leafIndex, n.asset, n.value.Dec())
}

// NoteState is the plain serialisable form of a note. It deliberately
// carries no signer; callers reattach one with WithSigner if signing is
// needed after restore.
type NoteState struct {
	TreeNumber        uint32                 `json:"treeNumber"`
	LeafIndex         uint32                 `json:"leafIndex"`
	SpendingPubkey    keys.SpendingPublicKey `json:"spendingPubkey"`
	ViewingPubkey     [32]byte               `json:"viewingPubkey"`
	Random            [16]byte               `json:"random"`
	Value             uint256.Int            `json:"value"`
	Asset             asset.ID               `json:"asset"`
	Memo              string                 `json:"memo"`
	Kind              UtxoKind               `json:"kind"`
	Hash              uint256.Int            `json:"hash"`
	Npk               uint256.Int            `json:"npk"`
	NullifyingKey     uint256.Int            `json:"nullifyingKey"`
	BlindedCommitment uint256.Int            `json:"blindedCommitment"`
}

// State snapshots the note without its signer.
func (n *UtxoNote) State() NoteState {
	return NoteState{
		TreeNumber:        n.treeNumber,
		LeafIndex:         n.leafIndex,
		SpendingPubkey:    n.spendingPubkey,
		ViewingPubkey:     [32]byte(n.viewingPubkey),
		Random:            n.random,
		Value:             n.value,
		Asset:             n.asset,
		Memo:              n.memo,
		Kind:              n.kind,
		Hash:              n.hash,
		Npk:               n.npk,
		NullifyingKey:     n.nullifyingKey,
		BlindedCommitment: n.blindedCommitment,
	}
}

// NoteFromState restores a signerless note from a snapshot.
func NoteFromState(state NoteState) *UtxoNote {
	return &UtxoNote{
		treeNumber:        state.TreeNumber,
		leafIndex:         state.LeafIndex,
		spendingPubkey:    state.SpendingPubkey,
		viewingPubkey:     keys.ViewingPublicKey(state.ViewingPubkey),
		random:            state.Random,
		value:             state.Value,
		asset:             state.Asset,
		memo:              state.Memo,
		kind:              state.Kind,
		hash:              state.Hash,
		npk:               state.Npk,
		nullifyingKey:     state.NullifyingKey,
		blindedCommitment: state.BlindedCommitment,
	}
}

// DecryptNote attempts to decrypt a transact output ciphertext for the given
// account at position (treeNumber, leafIndex). A GCM authentication failure
// means the note is not addressed to this account and surfaces as
// keys.ErrDecryptFailed.
func DecryptNote(signer Signer, treeNumber, leafIndex uint32, encrypted *abis.CommitmentCiphertext) (*UtxoNote, error) {
	var blindedSender keys.BlindedKey
	copy(blindedSender[:], encrypted.BlindedSenderViewingKey[:])

	sharedKey, err := signer.ViewingKey().DeriveSharedKeyBlinded(blindedSender)
	if err != nil {
		return nil, err
	}

	ct := keys.Ciphertext{
		Data: [][]byte{
			append([]byte(nil), encrypted.Ciphertext[1][:]...),
			append([]byte(nil), encrypted.Ciphertext[2][:]...),
			append([]byte(nil), encrypted.Ciphertext[3][:]...),
			append([]byte(nil), encrypted.Memo...),
		},
	}
	copy(ct.IV[:], encrypted.Ciphertext[0][:16])
	copy(ct.Tag[:], encrypted.Ciphertext[0][16:])

	// iv (16) | tag (16)
	// master_public_key (32)
	// token_hash (32)
	// random (16) | value (16)
	bundle, err := sharedKey.DecryptGCM(ct)
	if err != nil {
		return nil, err
	}

	tokenData, err := asset.TokenDataFromHash(bundle[1])
	if err != nil {
		return nil, err
	}

	var random [16]byte
	copy(random[:], bundle[2][:16])

	var value uint256.Int
	value.SetBytes(bundle[2][16:])

	memo := ""
	if len(bundle) > 3 && utf8.Valid(bundle[3]) {
		memo = string(bundle[3])
	}

	return NewUtxoNote(treeNumber, leafIndex, signer, asset.FromTokenData(tokenData),
		&value, random, memo, KindTransact), nil
}

// DecryptShieldRequest decrypts a shield event's encrypted bundle into a
// shield-kind note, combining it with the cleartext preimage.
func DecryptShieldRequest(signer Signer, treeNumber, leafIndex uint32, req *abis.ShieldRequest) (*UtxoNote, error) {
	var shieldKey keys.ViewingPublicKey
	copy(shieldKey[:], req.Ciphertext.ShieldKey[:])

	sharedKey, err := signer.ViewingKey().DeriveSharedKey(shieldKey)
	if err != nil {
		return nil, err
	}

	ct := keys.Ciphertext{
		Data: [][]byte{append([]byte(nil), req.Ciphertext.EncryptedBundle[1][:16]...)},
	}
	copy(ct.IV[:], req.Ciphertext.EncryptedBundle[0][:16])
	copy(ct.Tag[:], req.Ciphertext.EncryptedBundle[0][16:])

	decrypted, err := sharedKey.DecryptGCM(ct)
	if err != nil {
		return nil, err
	}

	var random [16]byte
	copy(random[:], decrypted[0][:16])

	var value uint256.Int
	if req.Preimage.Value != nil {
		value = *uint256.MustFromBig(req.Preimage.Value)
	}

	return NewUtxoNote(treeNumber, leafIndex, signer, req.Preimage.Token.AssetID(),
		&value, random, "", KindShield), nil
}
