package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type memoryArchive struct {
	objects map[string]Object
	failOn  string
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{objects: map[string]Object{}}
}

func (m *memoryArchive) Archive(_ context.Context, obj Object) (ObjectInfo, error) {
	if obj.Key == m.failOn {
		return ObjectInfo{}, errors.New("disk full")
	}
	m.objects[obj.Key] = obj
	return ObjectInfo{Key: obj.Key, Size: int64(len(obj.Data))}, nil
}

func TestArchiveUploads(t *testing.T) {
	store := newMemoryArchive()
	keys, err := ArchiveUploads(context.Background(), store, "s1", []UploadFile{
		{Role: "customers", Name: "customers.csv", Data: []byte("customer_id\n1\n")},
		{Role: "documents", Name: "refund policy.pdf", Data: []byte("%PDF-1.4")},
	})
	if err != nil {
		t.Fatalf("ArchiveUploads() error = %v", err)
	}
	want := []string{"sessions/s1/customers/customers.csv", "sessions/s1/documents/refund_policy.pdf"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	if got := string(store.objects[want[0]].Data); got != "customer_id\n1\n" {
		t.Fatalf("archived body = %q", got)
	}
	if got := store.objects[want[1]].ContentType; got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	wantMeta := map[string]string{
		MetaSessionID:    "s1",
		MetaRole:         "documents",
		MetaOriginalName: "refund+policy.pdf",
	}
	if diff := cmp.Diff(wantMeta, store.objects[want[1]].Metadata); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestArchiveUploadsStopsOnFailure(t *testing.T) {
	store := newMemoryArchive()
	store.failOn = "sessions/s1/tickets/tickets.csv"
	keys, err := ArchiveUploads(context.Background(), store, "s1", []UploadFile{
		{Role: "customers", Name: "customers.csv", Data: []byte("a")},
		{Role: "tickets", Name: "tickets.csv", Data: []byte("b")},
		{Role: "documents", Name: "p.txt", Data: []byte("c")},
	})
	if err == nil {
		t.Fatal("expected archive error")
	}
	if len(keys) != 1 || len(store.objects) != 1 {
		t.Fatalf("keys = %v objects = %d", keys, len(store.objects))
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.CSV":     "text/csv",
		"b.parquet": "application/vnd.apache.parquet",
		"c.md":      "text/markdown; charset=utf-8",
		"d.bin":     "application/octet-stream",
	}
	for name, want := range tests {
		if got := ContentTypeFor(name); got != want {
			t.Fatalf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}
