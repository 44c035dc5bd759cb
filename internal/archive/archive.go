// Package archive сохраняет artifacts успешного запуска в MinIO/S3
// до того, как очистка удалит их с диска.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrInvalidConfig — конфигурация архива некорректна.
var ErrInvalidConfig = errors.New("invalid archive config")

// Config — подключение к объектному хранилищу.
type Config struct {
	// Endpoint — host:port без схемы (например, "localhost:9000").
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string

	// Prefix — префикс ключей; ключ объекта: <prefix>/<run_id>/<basename>.
	Prefix string
	UseSSL bool
}

// Validate проверяет обязательные поля.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("%w: endpoint must not include scheme", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("%w: bucket is required", ErrInvalidConfig)
	}
	return nil
}

// NewClient создаёт MinIO клиент.
func NewClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
}

// EnsureBucket создаёт bucket, если его нет.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg Config) error {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
		return fmt.Errorf("make bucket %s: %w", cfg.Bucket, err)
	}
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// filePutter — подмножество *minio.Client, нужное Archiver.
type filePutter interface {
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Archiver загружает artifacts запуска в bucket.
type Archiver struct {
	client filePutter
	bucket string
	prefix string
	logger *slog.Logger
}

// NewArchiver создаёт Archiver поверх MinIO клиента.
func NewArchiver(client *minio.Client, cfg Config, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}
}

// ObjectKey возвращает ключ объекта для файла запуска.
func (a *Archiver) ObjectKey(runID, filePath string) string {
	return path.Join(a.prefix, runID, filepath.Base(filePath))
}

// Archive загружает каждый файл. Первая ошибка прерывает загрузку.
func (a *Archiver) Archive(ctx context.Context, runID string, paths []string) error {
	logger := a.logger
	if logger == nil {
		logger = slog.Default()
	}

	for _, p := range paths {
		key := a.ObjectKey(runID, p)

		opts := minio.PutObjectOptions{
			ContentType:  contentType(p),
			UserMetadata: map[string]string{"run-id": runID},
		}

		info, err := a.client.FPutObject(ctx, a.bucket, key, p, opts)
		if err != nil {
			return fmt.Errorf("upload %s to %s/%s: %w", p, a.bucket, key, err)
		}

		logger.Info("artifact archived",
			"run_id", runID,
			"bucket", a.bucket,
			"key", key,
			"size", info.Size,
		)
	}
	return nil
}

func contentType(p string) string {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	if ct := mime.TypeByExtension(filepath.Ext(p)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
