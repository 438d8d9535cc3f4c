// Command migrate applies, inspects and rolls back the database schema.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"cloudysky/internal/config"
	"cloudysky/internal/database"

	"gorm.io/gorm"
)

const usageText = `usage: migrate <command> [args]

commands:
  up              apply pending SQL migrations
  auto            run GORM AutoMigrate regardless of DB_SCHEMA_MODE
  status          show the schema policy, missing tables and pending migrations
  down <version>  roll back one applied migration`

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usageText) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		return fmt.Errorf("missing command")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	ctx := context.Background()
	switch cmd := strings.ToLower(strings.TrimSpace(flag.Arg(0))); cmd {
	case "up":
		if err := database.RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("sql migrations applied")
	case "auto":
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
	case "status":
		return printStatus(ctx, db, cfg)
	case "down":
		if flag.NArg() < 2 {
			return fmt.Errorf("down needs a version")
		}
		version, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
		}
		if err := database.RollbackMigration(ctx, db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Printf("rolled back migration %d", version)
	default:
		flag.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}

	return nil
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "mode\t%s\n", status.Mode)
	fmt.Fprintf(w, "env\t%s\n", status.Environment)
	fmt.Fprintf(w, "driver\t%s\n", status.Driver)
	fmt.Fprintf(w, "run sql\t%t\n", status.WillRunSQL)
	fmt.Fprintf(w, "run auto\t%t\n", status.WillRunAutoMigrate)
	fmt.Fprintf(w, "applied\t%v\n", status.AppliedVersions)

	migrator := db.WithContext(ctx).Migrator()
	for _, m := range database.PersistentModels() {
		state := "present"
		if !migrator.HasTable(m) {
			state = "missing"
		}
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err == nil {
			fmt.Fprintf(w, "table %s\t%s\n", stmt.Schema.Table, state)
		}
	}
	for _, m := range status.PendingMigrations {
		fmt.Fprintf(w, "pending\t%s\n", m.String())
	}
	return w.Flush()
}
