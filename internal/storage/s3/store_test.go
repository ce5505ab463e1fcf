package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pardeepwalia007/Assignment-RAG/internal/storage"
)

type fakeClient struct {
	puts        []storage.Object
	buckets     map[string]bool
	madeBucket  string
	existsErr   error
	putErr      error
	bucketCalls int
}

func (f *fakeClient) PutObject(_ context.Context, bucket, key string, obj storage.Object) (storage.ObjectInfo, error) {
	if f.putErr != nil {
		return storage.ObjectInfo{}, f.putErr
	}
	f.puts = append(f.puts, obj)
	return storage.ObjectInfo{Key: key, Size: int64(len(obj.Data)), ETag: "etag-" + bucket}, nil
}

func (f *fakeClient) BucketExists(_ context.Context, bucket string) (bool, error) {
	f.bucketCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.buckets[bucket], nil
}

func (f *fakeClient) MakeBucket(_ context.Context, bucket, _ string) error {
	f.madeBucket = bucket
	if f.buckets == nil {
		f.buckets = map[string]bool{}
	}
	f.buckets[bucket] = true
	return nil
}

func TestArchivePrefixesKeyAndKeepsMetadata(t *testing.T) {
	fake := &fakeClient{}
	archive, err := NewWithClient("uploads", "/bi-agent/prod/", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	info, err := archive.Archive(context.Background(), storage.Object{
		Key:         "/sessions/s1/customers/customers.csv",
		Data:        []byte("customer_id\n1\n"),
		ContentType: "text/csv",
		Metadata:    map[string]string{storage.MetaSessionID: "s1"},
	})
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if info.Key != "bi-agent/prod/sessions/s1/customers/customers.csv" || info.Size != 14 {
		t.Fatalf("info = %+v", info)
	}
	if len(fake.puts) != 1 {
		t.Fatalf("puts = %d", len(fake.puts))
	}
	if diff := cmp.Diff(map[string]string{storage.MetaSessionID: "s1"}, fake.puts[0].Metadata); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveDefaultsContentTypeFromKey(t *testing.T) {
	fake := &fakeClient{}
	archive, err := NewWithClient("uploads", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := archive.Archive(context.Background(), storage.Object{Key: "sessions/s1/documents/policy.pdf", Data: []byte("%PDF")}); err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if got := fake.puts[0].ContentType; got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
}

func TestArchiveRejectsUnsafeKeys(t *testing.T) {
	archive, err := NewWithClient("uploads", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	for _, key := range []string{"", "../secrets.txt", "sessions/../x", "sessions//x", "sessions/./x"} {
		if _, err := archive.Archive(context.Background(), storage.Object{Key: key}); err == nil {
			t.Fatalf("Archive(%q) expected error", key)
		}
	}
}

func TestArchiveWrapsClientError(t *testing.T) {
	cause := errors.New("connection reset")
	archive, err := NewWithClient("uploads", "", &fakeClient{putErr: cause})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	_, err = archive.Archive(context.Background(), storage.Object{Key: "sessions/s1/tickets/t.csv"})
	if !errors.Is(err, cause) {
		t.Fatalf("Archive() error = %v, want wrapped cause", err)
	}
}

func TestPing(t *testing.T) {
	fake := &fakeClient{}
	archive, err := NewWithClient("uploads", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := archive.Ping(context.Background()); !errors.Is(err, storage.ErrBucketMissing) {
		t.Fatalf("Ping() error = %v, want ErrBucketMissing", err)
	}

	if err := archive.ensureBucket(context.Background(), "us-east-1"); err != nil {
		t.Fatalf("ensureBucket() error = %v", err)
	}
	if fake.madeBucket != "uploads" {
		t.Fatalf("made bucket = %q", fake.madeBucket)
	}
	if err := archive.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() after create error = %v", err)
	}

	fake.existsErr = errors.New("timeout")
	if err := archive.Ping(context.Background()); err == nil || errors.Is(err, storage.ErrBucketMissing) {
		t.Fatalf("Ping() error = %v, want reachability error", err)
	}
}

func TestNewWithClientValidates(t *testing.T) {
	if _, err := NewWithClient("uploads", "", nil); err == nil {
		t.Fatal("expected nil client error")
	}
	if _, err := NewWithClient("  ", "", &fakeClient{}); err == nil {
		t.Fatal("expected bucket error")
	}
}

func TestEndpointHost(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "localhost:9000", wantHost: "localhost:9000"},
		{raw: "minio:9000", useSSL: true, wantHost: "minio:9000", wantSecure: true},
		{raw: "https://minio.example.com", wantHost: "minio.example.com", wantSecure: true},
		{raw: "http://minio.local:9000", wantHost: "minio.local:9000"},
		{raw: "ftp://minio.local", wantErr: true},
		{raw: "http://", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		host, secure, err := endpointHost(tt.raw, tt.useSSL)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("endpointHost(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("endpointHost(%q) error = %v", tt.raw, err)
		}
		if host != tt.wantHost || secure != tt.wantSecure {
			t.Fatalf("endpointHost(%q) = %q/%v, want %q/%v", tt.raw, host, secure, tt.wantHost, tt.wantSecure)
		}
	}
}
