package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	auditpostgres "github.com/pardeepwalia007/Assignment-RAG/internal/audit/postgres"
	"github.com/pardeepwalia007/Assignment-RAG/internal/config"
	"github.com/pardeepwalia007/Assignment-RAG/internal/migrations"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	cfg, err := config.LoadFromEnv("bi-agent-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Audit.DSN == "" {
		fmt.Fprintln(os.Stderr, "BIAGENT_AUDIT_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := auditpostgres.Open(ctx, auditpostgres.DBConfig{DSN: cfg.Audit.DSN})
	if err != nil {
		fmt.Fprintf(os.Stderr, "database error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration up failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("applied %d migration(s)\n", applied)
	case "down":
		rolledBack, err := runner.Down(ctx, db, *steps)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration down failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("rolled back %d migration(s)\n", rolledBack)
	case "status":
		statuses, err := runner.Status(ctx, db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "migration status failed: %v\n", err)
			os.Exit(1)
		}
		drifted := false
		for _, st := range statuses {
			switch {
			case st.Drifted:
				drifted = true
				fmt.Printf("%06d %-24s DRIFTED  applied %s\n", st.Version, st.Name, st.AppliedAt.Format(time.RFC3339))
			case st.Applied:
				fmt.Printf("%06d %-24s applied  %s\n", st.Version, st.Name, st.AppliedAt.Format(time.RFC3339))
			default:
				fmt.Printf("%06d %-24s pending\n", st.Version, st.Name)
			}
		}
		if drifted {
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "invalid direction: %s\n", *direction)
		os.Exit(1)
	}
}
