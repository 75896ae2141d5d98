// Package gcs provides a Google Cloud Storage implementation of the storage
// interfaces, used for off-site backup of model artifacts and the weather
// cache.
package gcs

import (
	"context"
	"fmt"
	"io"
	"sync"

	gcstorage "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	appConfig "github.com/hartwell/standwatch/internal/config"
	"github.com/hartwell/standwatch/internal/storage"
	storageConfig "github.com/hartwell/standwatch/internal/storage/config"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// ProviderType defines the type identifier for this GCS storage provider.
const ProviderType = "gcs"

// gcsAdapter implements storage.Connection over a GCS client.
type gcsAdapter struct {
	client *gcstorage.Client
	cfg    storageConfig.StorageConfig
	name   string
}

var _ storage.Connection = (*gcsAdapter)(nil)

// NewGCSAdapter creates a connection to GCS. When CredentialsFile is set it
// is used for authentication; otherwise application default credentials apply.
func NewGCSAdapter(ctx context.Context, cfg storageConfig.StorageConfig, name string) (storage.Connection, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := gcstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to create client: %w", name, err)
	}
	return &gcsAdapter{client: client, cfg: cfg, name: name}, nil
}

// Close releases the underlying GCS client.
func (a *gcsAdapter) Close() error {
	logger.Debugf("GCS storage adapter '%s' closed.", a.name)
	return a.client.Close()
}

// Type returns "gcs".
func (a *gcsAdapter) Type() string {
	return ProviderType
}

// Name returns the name of this connection.
func (a *gcsAdapter) Name() string {
	return a.name
}

// bucketName falls back to the configured default bucket.
func (a *gcsAdapter) bucketName(bucket string) string {
	if bucket == "" {
		return a.cfg.BucketName
	}
	return bucket
}

// Upload streams data into the object.
func (a *gcsAdapter) Upload(ctx context.Context, bucket, objectName string, data io.Reader, contentType string) error {
	w := a.client.Bucket(a.bucketName(bucket)).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object '%s' to bucket '%s': %w", objectName, a.bucketName(bucket), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object '%s' in bucket '%s': %w", objectName, a.bucketName(bucket), err)
	}
	logger.Debugf("Uploaded object '%s' to GCS bucket '%s' (adapter '%s').", objectName, a.bucketName(bucket), a.name)
	return nil
}

// Download opens a reader over the object. The returned io.ReadCloser must be
// closed by the caller.
func (a *gcsAdapter) Download(ctx context.Context, bucket, objectName string) (io.ReadCloser, error) {
	r, err := a.client.Bucket(a.bucketName(bucket)).Object(objectName).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open object '%s' in bucket '%s': %w", objectName, a.bucketName(bucket), err)
	}
	return r, nil
}

// ListObjects iterates objects under the prefix and calls fn for each name.
func (a *gcsAdapter) ListObjects(ctx context.Context, bucket, prefix string, fn func(objectName string) error) error {
	it := a.client.Bucket(a.bucketName(bucket)).Objects(ctx, &gcstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to list objects in bucket '%s' with prefix '%s': %w", a.bucketName(bucket), prefix, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
	return nil
}

// DeleteObject deletes the object; a missing object logs a warning and
// returns nil.
func (a *gcsAdapter) DeleteObject(ctx context.Context, bucket, objectName string) error {
	err := a.client.Bucket(a.bucketName(bucket)).Object(objectName).Delete(ctx)
	if err == gcstorage.ErrObjectNotExist {
		logger.Warnf("Attempted to delete non-existent object '%s' (gcs adapter '%s').", objectName, a.name)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete object '%s' from bucket '%s': %w", objectName, a.bucketName(bucket), err)
	}
	logger.Debugf("Deleted object '%s' from GCS bucket '%s' (adapter '%s').", objectName, a.bucketName(bucket), a.name)
	return nil
}

// GCSProvider implements storage.Provider for GCS connections.
type GCSProvider struct {
	cfg         *appConfig.Config
	connections map[string]storage.Connection
	mu          sync.RWMutex
}

// NewGCSProvider creates a new GCSProvider instance.
func NewGCSProvider(cfg *appConfig.Config) storage.Provider {
	return &GCSProvider{
		cfg:         cfg,
		connections: make(map[string]storage.Connection),
	}
}

// GetConnection retrieves a connection by name, creating it on first use.
func (p *GCSProvider) GetConnection(name string) (storage.Connection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	conn, ok = p.connections[name]
	if ok {
		return conn, nil
	}

	storageCfg, err := storage.DecodeConfig(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if storageCfg.Type != ProviderType {
		return nil, fmt.Errorf("storage config type mismatch for '%s': expected '%s', got '%s'", name, ProviderType, storageCfg.Type)
	}

	newConn, err := NewGCSAdapter(context.Background(), storageCfg, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcs adapter for '%s': %w", name, err)
	}

	p.connections[name] = newConn
	logger.Debugf("Created new GCS storage connection '%s'.", name)
	return newConn, nil
}

// CloseAll closes all connections managed by this provider.
func (p *GCSProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close gcs storage connection '%s': %w", name, err))
		}
		delete(p.connections, name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors closing gcs storage connections: %v", errs)
	}
	return nil
}

// Type returns "gcs".
func (p *GCSProvider) Type() string {
	return ProviderType
}

// ForceReconnect closes and re-establishes the named connection.
func (p *GCSProvider) ForceReconnect(name string) (storage.Connection, error) {
	p.mu.Lock()
	if conn, ok := p.connections[name]; ok {
		if err := conn.Close(); err != nil {
			logger.Warnf("Failed to gracefully close gcs storage connection '%s' during force reconnect: %v", name, err)
		}
		delete(p.connections, name)
	}
	p.mu.Unlock()

	return p.GetConnection(name)
}
