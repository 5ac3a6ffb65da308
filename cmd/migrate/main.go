package main

import (
	"flag"
	"fmt"
	"os"

	"auditdesk.org/internal/migrate"
	"auditdesk.org/internal/obs"
)

func main() {
	log := obs.Logger()
	var (
		dsn   = flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
		table = flag.String("table", "", "migrations bookkeeping table")
	)
	flag.Parse()

	if len(flag.Args()) == 0 {
		fmt.Fprintln(os.Stderr, "usage: migrate [-dsn DSN] up|down|status")
		os.Exit(2)
	}

	mgr, err := migrate.NewManager(*dsn, migrate.WithMigrationsTable(*table))
	if err != nil {
		log.WithError(err).Fatal("missing DSN: provide via -dsn or DATABASE_URL")
	}

	switch flag.Arg(0) {
	case "up":
		err = mgr.Up()
	case "down":
		err = mgr.Down()
	case "status":
		var st migrate.Status
		st, err = mgr.Status()
		if err == nil {
			if !st.Applied {
				fmt.Println("no migrations applied")
			} else {
				fmt.Printf("version %d dirty=%t\n", st.Version, st.Dirty)
			}
		}
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.WithError(err).Fatalf("migrate %s", flag.Arg(0))
	}
	log.WithField("command", flag.Arg(0)).Info("migrate done")
}
