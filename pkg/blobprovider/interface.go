// Interface for writing storage provider adapters. A provider stores the binary halves
// of Assets; metadata lives in the metadata database. Each Destination config string
// yields one provider instance that is shared for the Destination's lifetime.
package blobprovider

import (
	"context"
	"io"
	"log"
)

type Provider interface {
	// stores content, returning a backend-local opaque media ID. must be safe to
	// retry: a failed Put must not leave a claim on the returned ID.
	Put(ctx context.Context, content io.Reader, filename string, mimetype string) (string, error)

	// if blob is not found, error must be amserrors.AssetNotFound
	Get(ctx context.Context, mediaID string) (io.ReadCloser, error)

	// best-effort: deleting an already-absent blob is not an error
	Delete(ctx context.Context, mediaID string) error

	Exists(ctx context.Context, mediaID string) (bool, error)

	// deletes every blob under this provider's configured scope (tests/administration)
	Drop(ctx context.Context) error
}

// constructs a provider from the raw config part of a "Type,Name,Config" destination
// string. the config dialect is owned by the backend.
type Factory func(config string, logger *log.Logger) (Provider, error)
