package writer

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/application/port"
	"github.com/tigerroll/chunkbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// ExecutionContext keys set by ParquetItemWriter.Close.
const (
	ContextKeyObjectName = "parquet.objectName"
	ContextKeyRecords    = "parquet.records"
)

// ParquetWriterConfig holds the configuration for ParquetItemWriter.
type ParquetWriterConfig struct {
	// StorageRef is the name of the storage connection under adapter.storage.
	StorageRef string `yaml:"storage_ref"`
	// Bucket overrides the bucket of the storage connection.
	Bucket string `yaml:"bucket"`
	// ObjectPrefix starts the object name: <prefix>-<timestamp>-<id>.parquet.
	ObjectPrefix string `yaml:"object_prefix"`
	// CompressionType is SNAPPY (default), GZIP or NONE.
	CompressionType string `yaml:"compression_type"`
}

// ParquetItemWriter buffers the written items of a step and uploads them as one Parquet
// object when the step closes its writer. O must carry parquet struct tags.
type ParquetItemWriter[O any] struct {
	name          string
	config        ParquetWriterConfig
	resolver      storage.StorageConnectionResolver
	itemPrototype *O

	conn       storage.StorageConnection
	ec         model.ExecutionContext
	buffered   []O
	objectName string
}

// NewParquetItemWriter creates a writer. itemPrototype is used for schema reflection.
func NewParquetItemWriter[O any](name string, config ParquetWriterConfig, resolver storage.StorageConnectionResolver, itemPrototype *O) (*ParquetItemWriter[O], error) {
	if config.StorageRef == "" {
		return nil, exception.NewBatchErrorf(moduleName, "ParquetItemWriter '%s' requires storage_ref", name)
	}
	if _, err := compressionCodec(config.CompressionType); err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("ParquetItemWriter '%s'", name), err, false, false)
	}
	if config.ObjectPrefix == "" {
		config.ObjectPrefix = name
	}
	return &ParquetItemWriter[O]{
		name:          name,
		config:        config,
		resolver:      resolver,
		itemPrototype: itemPrototype,
	}, nil
}

// Open resolves the storage connection and clears the buffer.
func (w *ParquetItemWriter[O]) Open(ctx context.Context, ec model.ExecutionContext) error {
	conn, err := w.resolver.ResolveStorageConnection(ctx, w.config.StorageRef)
	if err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to resolve storage connection '%s' for ParquetItemWriter '%s'", w.config.StorageRef, w.name), err, false, false)
	}
	w.conn = conn
	w.ec = ec
	w.buffered = nil
	w.objectName = ""
	return nil
}

// Write buffers items. Nothing is uploaded before Close.
func (w *ParquetItemWriter[O]) Write(ctx context.Context, items []O) error {
	w.buffered = append(w.buffered, items...)
	logger.Debugf("ParquetItemWriter '%s' buffered %d items. Total buffered: %d.", w.name, len(items), len(w.buffered))
	return nil
}

// Close encodes the buffered items and uploads them. An empty buffer uploads nothing.
func (w *ParquetItemWriter[O]) Close(ctx context.Context) error {
	if len(w.buffered) == 0 {
		logger.Infof("ParquetItemWriter '%s': no records buffered, skipping upload.", w.name)
		return nil
	}
	defer func() { w.buffered = nil }()

	data, err := w.encode()
	if err != nil {
		return err
	}

	objectName := fmt.Sprintf("%s-%s-%s.parquet", w.config.ObjectPrefix, time.Now().UTC().Format("20060102150405"), uuid.NewString()[:8])
	objectName = path.Clean(objectName)
	if err := w.conn.Upload(ctx, w.config.Bucket, objectName, bytes.NewReader(data), "application/octet-stream"); err != nil {
		return exception.NewBatchError(moduleName, fmt.Sprintf("failed to upload '%s' for ParquetItemWriter '%s'", objectName, w.name), err, false, true)
	}

	w.objectName = objectName
	if w.ec != nil {
		w.ec.Put(ContextKeyObjectName, objectName)
		w.ec.Put(ContextKeyRecords, len(w.buffered))
	}
	logger.Infof("ParquetItemWriter '%s': uploaded %d records to %s:%s.", w.name, len(w.buffered), w.config.StorageRef, objectName)
	return nil
}

// ObjectName returns the name of the last uploaded object.
func (w *ParquetItemWriter[O]) ObjectName() string {
	return w.objectName
}

func (w *ParquetItemWriter[O]) encode() (data []byte, err error) {
	codec, _ := compressionCodec(w.config.CompressionType)
	buf := new(bytes.Buffer)
	pw, err := writer.NewParquetWriterFromWriter(buf, w.itemPrototype, 1)
	if err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to create Parquet writer for '%s'", w.name), err, false, false)
	}
	pw.CompressionType = codec

	var result *multierror.Error
	for _, it := range w.buffered {
		if err := pw.Write(it); err != nil {
			result = multierror.Append(result, err)
		}
	}

	// parquet-go panics on some schema errors during WriteStop.
	defer func() {
		if r := recover(); r != nil {
			result = multierror.Append(result, fmt.Errorf("parquet writer panicked: %v", r))
			data, err = nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to encode Parquet for '%s'", w.name), result.ErrorOrNil(), false, false)
		}
	}()
	if err := pw.WriteStop(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, exception.NewBatchError(moduleName, fmt.Sprintf("failed to encode Parquet for '%s'", w.name), err, false, false)
	}
	return buf.Bytes(), nil
}

func compressionCodec(compressionType string) (parquet.CompressionCodec, error) {
	switch strings.ToUpper(compressionType) {
	case "SNAPPY", "":
		return parquet.CompressionCodec_SNAPPY, nil
	case "GZIP":
		return parquet.CompressionCodec_GZIP, nil
	case "NONE":
		return parquet.CompressionCodec_UNCOMPRESSED, nil
	default:
		return 0, fmt.Errorf("unsupported compression type: %s", compressionType)
	}
}

var _ port.ItemWriter[any] = (*ParquetItemWriter[any])(nil)
