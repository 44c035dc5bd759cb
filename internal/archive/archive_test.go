package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
)

type putCall struct {
	bucket, object, file string
	opts                 minio.PutObjectOptions
}

type fakePutter struct {
	calls  []putCall
	failOn string
}

func (f *fakePutter) FPutObject(_ context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	f.calls = append(f.calls, putCall{bucket, object, filePath, opts})
	if filePath == f.failOn {
		return minio.UploadInfo{}, errors.New("access denied")
	}
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: 4}, nil
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"ok", Config{Endpoint: "localhost:9000", Bucket: "runs"}, false},
		{"no endpoint", Config{Bucket: "runs"}, true},
		{"scheme", Config{Endpoint: "http://localhost:9000", Bucket: "runs"}, true},
		{"no bucket", Config{Endpoint: "localhost:9000"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v, wantErr=%v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestArchiver_ObjectKey(t *testing.T) {
	a := &Archiver{prefix: "conveyor"}
	if got := a.ObjectKey("run-1", "/data/work/extracted_data.csv"); got != "conveyor/run-1/extracted_data.csv" {
		t.Errorf("ObjectKey() = %q", got)
	}

	a = &Archiver{}
	if got := a.ObjectKey("run-1", "out.xlsx"); got != "run-1/out.xlsx" {
		t.Errorf("ObjectKey() without prefix = %q", got)
	}
}

func TestArchiver_Archive(t *testing.T) {
	put := &fakePutter{}
	a := &Archiver{client: put, bucket: "runs", prefix: "p"}

	err := a.Archive(context.Background(), "r1", []string{"/w/a.csv", "/w/b.xlsx"})
	if err != nil {
		t.Fatalf("Archive() err=%v", err)
	}

	if len(put.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(put.calls))
	}
	if put.calls[0].object != "p/r1/a.csv" || put.calls[0].opts.ContentType != "text/csv" {
		t.Errorf("first call = %+v", put.calls[0])
	}
	if put.calls[1].bucket != "runs" || put.calls[1].opts.UserMetadata["run-id"] != "r1" {
		t.Errorf("second call = %+v", put.calls[1])
	}
}

func TestArchiver_StopsOnError(t *testing.T) {
	put := &fakePutter{failOn: "/w/a.csv"}
	a := &Archiver{client: put, bucket: "runs"}

	if err := a.Archive(context.Background(), "r1", []string{"/w/a.csv", "/w/b.csv"}); err == nil {
		t.Fatal("expected error")
	}
	if len(put.calls) != 1 {
		t.Errorf("calls = %d, want 1", len(put.calls))
	}
}
