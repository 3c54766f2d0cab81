// Command migrate applies or inspects the engine's Postgres schema
// outside the main process, grounded on cryptofunk's cmd/migrate
// command-flag structure, generalized from its sql.DB+lib/pq migrator
// to internal/store.Store's own idempotent schema creation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/solarb/engine/internal/config"
	"github.com/solarb/engine/internal/store"
)

func main() {
	command := flag.String("command", "migrate", "command to run: migrate or status")
	dbURL := flag.String("db", os.Getenv("SOLARB_DATABASE_URL"), "database connection url")
	flag.Parse()

	if *dbURL == "" {
		fmt.Fprintln(os.Stderr, "no database url: set -db or SOLARB_DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := store.NewPool(ctx, *dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to database: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, config.NewLogger("migrate"))

	switch *command {
	case "migrate":
		if err := st.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("schema %s applied\n", store.SchemaVersion)
	case "status":
		count, err := st.CountRecordsSince(ctx, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "status check failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("schema version: %s\ndecision records: %d\n", store.SchemaVersion, count)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", *command)
		fmt.Fprintln(os.Stderr, "usage: migrate -command=[migrate|status] -db=<url>")
		os.Exit(1)
	}
}
