package sampledata

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/parquet-go/parquet-go"
)

var anchor = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestGeneratorIsDeterministic(t *testing.T) {
	a := NewGenerator(42, anchor)
	b := NewGenerator(42, anchor)

	customersA := a.Customers(10)
	customersB := b.Customers(10)
	if diff := cmp.Diff(customersA, customersB); diff != "" {
		t.Fatalf("customers differ for the same seed (-a +b):\n%s", diff)
	}
	if diff := cmp.Diff(a.Tickets(customersA, 30), b.Tickets(customersB, 30)); diff != "" {
		t.Fatalf("tickets differ for the same seed (-a +b):\n%s", diff)
	}
}

func TestTicketsReferenceCustomersAndStayInWindow(t *testing.T) {
	gen := NewGenerator(7, anchor)
	customers := gen.Customers(5)
	tickets := gen.Tickets(customers, 200)
	if len(tickets) != 200 {
		t.Fatalf("tickets = %d", len(tickets))
	}

	earliest := anchor.Add(-120 * 24 * time.Hour)
	for _, ticket := range tickets {
		if ticket.CustomerID < 1 || ticket.CustomerID > 5 {
			t.Fatalf("ticket %d references unknown customer %d", ticket.TicketID, ticket.CustomerID)
		}
		if ticket.CreatedAt.After(anchor) || ticket.CreatedAt.Before(earliest) {
			t.Fatalf("ticket %d created_at %s outside window", ticket.TicketID, ticket.CreatedAt)
		}
		resolved := ticket.Status == "resolved" || ticket.Status == "closed"
		if resolved != (ticket.ResolutionHours > 0) {
			t.Fatalf("ticket %d status %s resolution_hours %v", ticket.TicketID, ticket.Status, ticket.ResolutionHours)
		}
	}
	if gen.Tickets(nil, 3) != nil {
		t.Fatal("expected no tickets without customers")
	}
}

func TestWriteCSVDataset(t *testing.T) {
	dir := t.TempDir()
	out, err := Write(context.Background(), Config{OutDir: dir, Format: FormatCSV, Customers: 4, Tickets: 9, Seed: 1, Now: anchor})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if diff := cmp.Diff(map[string]int{"customers": 4, "tickets": 9}, out.Rows); diff != "" {
		t.Fatalf("row counts mismatch (-want +got):\n%s", diff)
	}

	raw, err := os.ReadFile(out.Tickets)
	if err != nil {
		t.Fatalf("read tickets error = %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse tickets csv error = %v", err)
	}
	if len(records) != 10 {
		t.Fatalf("ticket records = %d, want header plus 9", len(records))
	}
	if records[0][0] != "ticket_id" || records[0][6] != "created_at" {
		t.Fatalf("unexpected header: %v", records[0])
	}

	policy, err := os.ReadFile(out.Policy)
	if err != nil {
		t.Fatalf("read policy error = %v", err)
	}
	if !strings.Contains(string(policy), "within 30 days") {
		t.Fatalf("unexpected policy text: %s", policy)
	}
}

func TestWriteParquetDataset(t *testing.T) {
	dir := t.TempDir()
	out, err := Write(context.Background(), Config{OutDir: dir, Format: FormatParquet, Customers: 3, Tickets: 5, Seed: 2, Now: anchor})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.HasSuffix(out.Customers, "customers.parquet") {
		t.Fatalf("customers path = %s", out.Customers)
	}

	raw, err := os.ReadFile(out.Customers)
	if err != nil {
		t.Fatalf("read customers error = %v", err)
	}
	file, err := parquet.OpenFile(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open parquet error = %v", err)
	}
	if file.NumRows() != 3 {
		t.Fatalf("customer rows = %d", file.NumRows())
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	values := map[string]string{
		"BIAGENT_SAMPLE_OUT_DIR":   "/tmp/demo",
		"BIAGENT_SAMPLE_FORMAT":    "PARQUET",
		"BIAGENT_SAMPLE_CUSTOMERS": "12",
		"BIAGENT_SAMPLE_SEED":      "99",
	}
	cfg, err := LoadConfigFromEnv(func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("LoadConfigFromEnv() error = %v", err)
	}
	if cfg.OutDir != "/tmp/demo" || cfg.Format != FormatParquet || cfg.Customers != 12 || cfg.Seed != 99 || cfg.Tickets != 400 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	for key, value := range map[string]string{
		"BIAGENT_SAMPLE_FORMAT":    "xlsx",
		"BIAGENT_SAMPLE_CUSTOMERS": "0",
		"BIAGENT_SAMPLE_TICKETS":   "many",
	} {
		_, err := LoadConfigFromEnv(func(k string) (string, bool) {
			if k == key {
				return value, true
			}
			return "", false
		})
		if err == nil {
			t.Fatalf("%s=%s: expected error", key, value)
		}
	}
}
