package sampledata

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"golang.org/x/sync/errgroup"
)

const policyFile = "support_policy.txt"

// Dataset is what Write produced, as paths under the output directory.
type Dataset struct {
	Customers string
	Tickets   string
	Policy    string
	Rows      map[string]int
}

// Write generates the dataset described by cfg and writes the three files
// concurrently.
func Write(ctx context.Context, cfg Config) (Dataset, error) {
	if err := cfg.validate(); err != nil {
		return Dataset{}, err
	}
	now := cfg.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	gen := NewGenerator(cfg.Seed, now)
	customers := gen.Customers(cfg.Customers)
	tickets := gen.Tickets(customers, cfg.Tickets)

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return Dataset{}, fmt.Errorf("create output dir: %w", err)
	}
	ext := "." + string(cfg.Format)
	out := Dataset{
		Customers: filepath.Join(cfg.OutDir, "customers"+ext),
		Tickets:   filepath.Join(cfg.OutDir, "tickets"+ext),
		Policy:    filepath.Join(cfg.OutDir, policyFile),
		Rows:      map[string]int{"customers": len(customers), "tickets": len(tickets)},
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		data, err := encode(cfg.Format, customers, customerRecords)
		if err != nil {
			return fmt.Errorf("encode customers: %w", err)
		}
		return writeFile(groupCtx, out.Customers, data)
	})
	group.Go(func() error {
		data, err := encode(cfg.Format, tickets, ticketRecords)
		if err != nil {
			return fmt.Errorf("encode tickets: %w", err)
		}
		return writeFile(groupCtx, out.Tickets, data)
	})
	group.Go(func() error {
		return writeFile(groupCtx, out.Policy, []byte(Policy()))
	})
	if err := group.Wait(); err != nil {
		return Dataset{}, err
	}
	return out, nil
}

func encode[T any](format Format, rows []T, records func([]T) [][]string) ([]byte, error) {
	buf := &bytes.Buffer{}
	switch format {
	case FormatParquet:
		writer := parquet.NewGenericWriter[T](buf)
		if _, err := writer.Write(rows); err != nil {
			return nil, err
		}
		if err := writer.Close(); err != nil {
			return nil, err
		}
	default:
		writer := csv.NewWriter(buf)
		if err := writer.WriteAll(records(rows)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func customerRecords(customers []Customer) [][]string {
	records := [][]string{{"customer_id", "name", "email", "region", "segment"}}
	for _, c := range customers {
		records = append(records, []string{strconv.FormatInt(c.CustomerID, 10), c.Name, c.Email, c.Region, c.Segment})
	}
	return records
}

func ticketRecords(tickets []Ticket) [][]string {
	records := [][]string{{"ticket_id", "customer_id", "status", "priority", "channel", "category", "created_at", "resolution_hours"}}
	for _, t := range tickets {
		resolution := ""
		if t.ResolutionHours > 0 {
			resolution = strconv.FormatFloat(t.ResolutionHours, 'f', 1, 64)
		}
		records = append(records, []string{
			strconv.FormatInt(t.TicketID, 10),
			strconv.FormatInt(t.CustomerID, 10),
			t.Status,
			t.Priority,
			t.Channel,
			t.Category,
			t.CreatedAt.Format(time.DateTime),
			resolution,
		})
	}
	return records
}

func writeFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
