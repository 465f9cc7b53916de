package lightnode

import (
	"context"
	"time"

	libshare "github.com/celestiaorg/go-square/v3/share"
)

// BlobAPI mirrors the subset of celestia-node's blob module the node uses.
// jsonrpc.NewMergeClient wires Internal.* to RPC stubs.
type BlobAPI struct {
	Internal struct {
		Submit func(
			context.Context,
			[]*Blob,
			*SubmitOptions,
		) (uint64, error) `perm:"write"`
		Get func(
			context.Context,
			uint64,
			libshare.Namespace,
			Commitment,
		) (*Blob, error) `perm:"read"`
		GetAll func(
			context.Context,
			uint64,
			[]libshare.Namespace,
		) ([]*Blob, error) `perm:"read"`
	}
}

// Submit sends blobs and returns the height they were included at.
func (api *BlobAPI) Submit(ctx context.Context, blobs []*Blob, opts *SubmitOptions) (uint64, error) {
	return api.Internal.Submit(ctx, blobs, opts)
}

// Get retrieves a blob by commitment under the given namespace and height.
func (api *BlobAPI) Get(ctx context.Context, height uint64, namespace libshare.Namespace, commitment Commitment) (*Blob, error) {
	return api.Internal.Get(ctx, height, namespace, commitment)
}

// GetAll returns all blobs for the given namespaces at the given height.
func (api *BlobAPI) GetAll(ctx context.Context, height uint64, namespaces []libshare.Namespace) ([]*Blob, error) {
	return api.Internal.GetAll(ctx, height, namespaces)
}

// Header contains the fields of celestia-node's header.ExtendedHeader the node reads.
type Header struct {
	Height    uint64    `json:"height,string,omitempty"`
	BlockTime time.Time `json:"time"`
}

// HeaderAPI mirrors celestia-node's header module.
type HeaderAPI struct {
	Internal struct {
		GetByHeight func(
			context.Context,
			uint64,
		) (*Header, error) `perm:"read"`
		NetworkHead func(
			context.Context,
		) (*Header, error) `perm:"read"`
	}
}

// GetByHeight retrieves a header at the specified height.
func (api *HeaderAPI) GetByHeight(ctx context.Context, height uint64) (*Header, error) {
	return api.Internal.GetByHeight(ctx, height)
}

// NetworkHead retrieves the network head header.
func (api *HeaderAPI) NetworkHead(ctx context.Context) (*Header, error) {
	return api.Internal.NetworkHead(ctx)
}
