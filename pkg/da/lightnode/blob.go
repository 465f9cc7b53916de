package lightnode

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/celestiaorg/go-square/merkle"
	"github.com/celestiaorg/go-square/v3/inclusion"
	libshare "github.com/celestiaorg/go-square/v3/share"
)

// DefaultMaxBlobSize is the largest blob a light node accepts by default (2 MiB).
const DefaultMaxBlobSize uint64 = 2 * 1024 * 1024

// subtreeRootThreshold is celestia-app's appconsts.SubtreeRootThreshold.
const subtreeRootThreshold = 64

// Commitment is the Merkle subtree commitment of a blob.
type Commitment []byte

// Blob is a batch of namespaced data as a light node stores it. Its JSON form is the one of
// celestia-node's blob.Blob, so LocalDA and a real light node are interchangeable on the wire.
type Blob struct {
	*libshare.Blob `json:"blob"`

	Commitment Commitment `json:"commitment"`

	// first share of the blob in the square, -1 until the light node reports it
	index int
}

// NewBlobV0 builds an unsigned share version 0 blob.
func NewBlobV0(namespace libshare.Namespace, data []byte) (*Blob, error) {
	return newBlob(libshare.ShareVersionZero, namespace, data, nil, -1)
}

func newBlob(shareVersion uint8, namespace libshare.Namespace, data, signer []byte, index int) (*Blob, error) {
	if err := namespace.ValidateForBlob(); err != nil {
		return nil, fmt.Errorf("invalid namespace: %w", err)
	}

	inner, err := libshare.NewBlob(namespace, data, shareVersion, signer)
	if err != nil {
		return nil, fmt.Errorf("build blob: %w", err)
	}

	com, err := inclusion.CreateCommitment(inner, merkle.HashFromByteSlices, subtreeRootThreshold)
	if err != nil {
		return nil, fmt.Errorf("create commitment: %w", err)
	}
	return &Blob{Blob: inner, Commitment: com, index: index}, nil
}

// Namespace returns the namespace the blob was posted under.
func (b *Blob) Namespace() libshare.Namespace {
	return b.Blob.Namespace()
}

// EqualCommitment reports whether com is the commitment of the blob.
func (b *Blob) EqualCommitment(com Commitment) bool {
	return bytes.Equal(b.Commitment, com)
}

type wireBlob struct {
	Namespace    []byte     `json:"namespace"`
	Data         []byte     `json:"data"`
	ShareVersion uint8      `json:"share_version"`
	Commitment   Commitment `json:"commitment"`
	Signer       []byte     `json:"signer,omitempty"`
	Index        int        `json:"index"`
}

func (b *Blob) MarshalJSON() ([]byte, error) {
	return json.Marshal(&wireBlob{
		Namespace:    b.Namespace().Bytes(),
		Data:         b.Data(),
		ShareVersion: b.ShareVersion(),
		Commitment:   b.Commitment,
		Signer:       b.Signer(),
		Index:        b.index,
	})
}

// UnmarshalJSON rebuilds the blob from its parts and recomputes the commitment. A blob whose
// recomputed commitment differs from the transmitted one is rejected.
func (b *Blob) UnmarshalJSON(data []byte) error {
	var w wireBlob
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	ns, err := libshare.NewNamespaceFromBytes(w.Namespace)
	if err != nil {
		return err
	}

	blob, err := newBlob(w.ShareVersion, ns, w.Data, w.Signer, w.Index)
	if err != nil {
		return err
	}
	if len(w.Commitment) > 0 && !blob.EqualCommitment(w.Commitment) {
		return fmt.Errorf("blob commitment mismatch: got %x, computed %x", []byte(w.Commitment), []byte(blob.Commitment))
	}

	*b = *blob
	return nil
}
