// Package cache persists the merged hourly weather table as a single parquet
// object behind a storage connection.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/hartwell/standwatch/internal/storage"
	"github.com/hartwell/standwatch/internal/support/exception"
	"github.com/hartwell/standwatch/internal/support/logger"
	"github.com/hartwell/standwatch/internal/weather"
)

// Row is the long-format parquet record: one (hour, field, value) cell.
type Row struct {
	Timestamp int64   `parquet:"name=timestamp, type=INT64"`
	Field     string  `parquet:"name=field, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Value     float64 `parquet:"name=value, type=DOUBLE"`
}

// Store reads and writes the weather cache object. One Store owns one cache
// object; save overwrites it whole, with no versioning.
type Store struct {
	conn        storage.Connection
	objectName  string
	compression string
}

// NewStore creates a Store over the given connection and object name.
func NewStore(conn storage.Connection, objectName, compression string) *Store {
	if compression == "" {
		compression = "SNAPPY"
	}
	return &Store{
		conn:        conn,
		objectName:  objectName,
		compression: compression,
	}
}

// Load reads the cached table, rebuilding it for the given field set with
// timestamps in loc. A missing cache object returns (nil, nil). A cache that
// exists but cannot be deserialized returns ErrCacheCorruption; the caller
// decides whether to degrade to a full refetch.
func (s *Store) Load(ctx context.Context, fields []string, loc *time.Location) (*weather.Table, error) {
	rc, err := s.conn.Download(ctx, "", s.objectName)
	if err != nil {
		logger.Debugf("Weather cache object '%s' not readable, treating as empty: %v", s.objectName, err)
		return nil, nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, s.corruption("failed to read cache object", err)
	}

	bf := buffer.NewBufferFileFromBytes(data)
	pr, err := reader.NewParquetReader(bf, new(Row), 4)
	if err != nil {
		return nil, s.corruption("failed to open cache parquet", err)
	}
	defer pr.ReadStop()

	num := int(pr.GetNumRows())
	rows := make([]Row, num)
	if err := pr.Read(&rows); err != nil {
		return nil, s.corruption("failed to read cache parquet rows", err)
	}

	cells := make(map[int64]map[string]float64)
	for _, r := range rows {
		cell, ok := cells[r.Timestamp]
		if !ok {
			cell = make(map[string]float64, len(fields))
			cells[r.Timestamp] = cell
		}
		cell[r.Field] = r.Value
	}

	stamps := make([]int64, 0, len(cells))
	for ts := range cells {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })

	table := weather.NewTable(fields)
	for _, ts := range stamps {
		if err := table.Append(time.Unix(ts, 0).In(loc), cells[ts]); err != nil {
			return nil, s.corruption("cached rows are inconsistent", err)
		}
	}

	logger.Debugf("Loaded weather cache '%s': %d hourly rows.", s.objectName, table.Len())
	return table, nil
}

// Save serializes the table to parquet and overwrites the cache object.
func (s *Store) Save(ctx context.Context, table *weather.Table) error {
	if table == nil || table.Len() == 0 {
		logger.Debugf("Weather cache save skipped: empty table.")
		return nil
	}

	rows := make([]Row, 0, table.Len()*len(table.Fields()))
	for _, ts := range table.Times() {
		row, _ := table.Row(ts)
		for _, f := range table.Fields() {
			rows = append(rows, Row{Timestamp: ts.Unix(), Field: f, Value: row[f]})
		}
	}

	codec, err := compressionCodec(s.compression)
	if err != nil {
		return exception.NewAppError("cache", fmt.Sprintf("invalid compression type '%s'", s.compression), err, false, false)
	}

	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, new(Row), int64(len(rows)))
	if err != nil {
		return exception.NewAppError("cache", "failed to create parquet writer", err, false, false)
	}
	pw.CompressionType = codec

	var multiErr error
	for _, r := range rows {
		if err := pw.Write(r); err != nil {
			multiErr = multierror.Append(multiErr, fmt.Errorf("failed to write cache row at %d: %w", r.Timestamp, err))
			break
		}
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				multiErr = multierror.Append(multiErr, fmt.Errorf("parquet writer panicked during WriteStop: %v", r))
				logger.Errorf("Weather cache: recovered from panic during WriteStop: %v", r)
			}
		}()
		if err := pw.WriteStop(); err != nil {
			multiErr = multierror.Append(multiErr, fmt.Errorf("failed to stop parquet writer: %w", err))
		}
	}()

	if multiErr != nil {
		return exception.NewAppError("cache", "failed to serialize weather cache", multiErr, false, false)
	}

	if err := s.conn.Upload(ctx, "", s.objectName, buf, "application/octet-stream"); err != nil {
		return exception.NewAppError("cache", fmt.Sprintf("failed to upload weather cache '%s'", s.objectName), err, false, true)
	}

	logger.Debugf("Saved weather cache '%s': %d hourly rows.", s.objectName, table.Len())
	return nil
}

// corruption wraps a deserialization failure with the sentinel so callers
// can match the category with errors.Is.
func (s *Store) corruption(msg string, err error) error {
	return exception.NewAppError("cache", fmt.Sprintf("%s '%s'", msg, s.objectName),
		errors.Join(exception.ErrCacheCorruption, err), false, false)
}

// compressionCodec maps a compression type string to the parquet codec.
func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE", "":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}
