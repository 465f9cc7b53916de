package da

import "errors"

// These errors are shared by DA client implementations and their consumers.
var (
	ErrBlobNotFound      = errors.New("blob: not found")
	ErrBlobSizeOverLimit = errors.New("blob: over size limit")
	ErrHeightFromFuture  = errors.New("given height is from the future")
	ErrStreamClosed      = errors.New("da stream closed")
)
