// Package storage defines the interfaces the weather cache, model artifact
// store, and photo tree use to reach durable storage. Backends (local file
// system, GCS) plug in behind a unified API.
package storage

import (
	"context"
	"io"
)

// Connection represents one named storage connection.
type Connection interface {
	// Upload uploads data to the specified bucket and object name.
	Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error
	// Download downloads data from the specified bucket and object name.
	// The returned ReadCloser must be closed by the caller.
	Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object name under the given bucket and prefix.
	ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error
	// DeleteObject deletes the specified object from the bucket.
	DeleteObject(ctx context.Context, bucket, objectName string) error
	// Close releases the connection's resources.
	Close() error
	// Type returns the backend type ("local", "gcs").
	Type() string
	// Name returns the connection name.
	Name() string
}

// Provider manages the acquisition and lifecycle of connections of one
// backend type.
type Provider interface {
	// GetConnection retrieves the connection with the specified name,
	// establishing it on first use.
	GetConnection(name string) (Connection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the backend type handled by this provider.
	Type() string
	// ForceReconnect closes and re-establishes the named connection.
	ForceReconnect(name string) (Connection, error)
}

// ConnectionResolver resolves a connection by name, routing to the provider
// whose type the connection's configuration declares.
type ConnectionResolver interface {
	ResolveConnection(ctx context.Context, name string) (Connection, error)
}
