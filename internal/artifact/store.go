// Package artifact persists model artifacts as JSON objects behind a storage
// connection, keyed "<camera> <species>".
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/hartwell/standwatch/internal/storage"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
)

// Store reads and writes JSON artifacts under a directory prefix on a
// storage connection. Saves overwrite whole objects.
type Store struct {
	conn storage.Connection
	dir  string
}

// NewStore creates a Store over the given connection and directory prefix.
func NewStore(conn storage.Connection, dir string) *Store {
	return &Store{conn: conn, dir: dir}
}

// Key builds the artifact key for a camera and species.
func Key(camera, species string) string {
	return fmt.Sprintf("%s %s", camera, species)
}

// objectName maps a key to its object path.
func (s *Store) objectName(key string) string {
	return path.Join(s.dir, key+".json")
}

// Save marshals v and overwrites the artifact object for key.
func (s *Store) Save(ctx context.Context, key string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return exception.NewAppError("artifact",
			fmt.Sprintf("failed to marshal artifact '%s'", key), err, false, false)
	}
	if err := s.conn.Upload(ctx, "", s.objectName(key), bytes.NewReader(data), "application/json"); err != nil {
		return exception.NewAppError("artifact",
			fmt.Sprintf("failed to upload artifact '%s'", key), err, false, true)
	}
	logger.Debugf("Saved artifact '%s' (%d bytes).", key, len(data))
	return nil
}

// Load reads the artifact for key into v. A missing artifact returns
// (false, nil) so callers can fall back to training.
func (s *Store) Load(ctx context.Context, key string, v interface{}) (bool, error) {
	rc, err := s.conn.Download(ctx, "", s.objectName(key))
	if err != nil {
		logger.Debugf("Artifact '%s' not readable, treating as absent: %v", key, err)
		return false, nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return false, exception.NewAppError("artifact",
			fmt.Sprintf("failed to read artifact '%s'", key), err, false, true)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, exception.NewAppError("artifact",
			fmt.Sprintf("failed to decode artifact '%s'", key), err, false, false)
	}
	return true, nil
}

// Keys lists the artifact keys present under the directory prefix.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.conn.ListObjects(ctx, "", s.dir, func(objectName string) error {
		if !strings.HasSuffix(objectName, ".json") {
			return nil
		}
		keys = append(keys, strings.TrimSuffix(path.Base(objectName), ".json"))
		return nil
	})
	if err != nil {
		return nil, exception.NewAppError("artifact", "failed to list artifacts", err, false, true)
	}
	return keys, nil
}

// Delete removes the artifact for key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.conn.DeleteObject(ctx, "", s.objectName(key)); err != nil {
		return exception.NewAppError("artifact",
			fmt.Sprintf("failed to delete artifact '%s'", key), err, false, true)
	}
	return nil
}
