package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter stores archive objects. PutMultipart is used once a payload is
// large enough to be worth splitting into parts.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// BlobReader lets the archiver skip objects it has already written.
type BlobReader interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver moves closed positions with their trades and swaps out of the
// primary store. It returns how many positions were archived.
type Archiver interface {
	ArchivePositions(ctx context.Context, before time.Time) (int64, error)
}
