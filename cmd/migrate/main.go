// Migrate brings the database schema up to date. Each .sql file under
// migrations/ runs once, inside its own transaction, and is recorded in
// schema_migrations; already-applied files are skipped on later runs.
// The first failure aborts the run so files never apply out of order.
//
//	migrate            apply pending migrations from ./migrations
//	migrate <dir>      apply pending migrations from <dir>
//	migrate --list     show applied migrations and current tables
package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	dir := "migrations"
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		} else {
			dir = a
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		log.Fatalf("ensure schema_migrations: %v", err)
	}

	applied, err := appliedSet(db)
	if err != nil {
		log.Fatalf("load applied migrations: %v", err)
	}

	if listOnly {
		list(db, applied)
		return
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		log.Fatalf("scan %s: %v", dir, err)
	}
	if len(paths) == 0 {
		log.Fatalf("no .sql files in %s", dir)
	}

	ran := 0
	for _, path := range paths { // Glob output is already sorted
		name := filepath.Base(path)
		if applied[name] {
			continue
		}
		if err := apply(db, path, name); err != nil {
			log.Fatalf("%s: %v", name, err)
		}
		log.Printf("applied %s", name)
		ran++
	}

	if ran == 0 {
		log.Println("Schema is up to date")
	} else {
		log.Printf("Done: %d migration(s) applied", ran)
	}
}

func appliedSet(db *sql.DB) (map[string]bool, error) {
	rows, err := db.Query("SELECT name FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		set[name] = true
	}
	return set, rows.Err()
}

// apply runs one migration file and records it, atomically: a failure
// in either statement rolls back both.
func apply(db *sql.DB, path, name string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(content)) == "" {
		return fmt.Errorf("migration file is empty")
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(string(content)); err != nil {
		tx.Rollback()
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (name) VALUES ($1)", name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func list(db *sql.DB, applied map[string]bool) {
	fmt.Printf("Applied migrations: %d\n", len(applied))
	rows, err := db.Query(`
		SELECT name, applied_at FROM schema_migrations ORDER BY name
	`)
	if err != nil {
		log.Fatal(err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var at time.Time
		if err := rows.Scan(&name, &at); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("  %s  (%s)\n", name, at.Format(time.RFC3339))
	}

	tables, err := db.Query("SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename")
	if err != nil {
		log.Fatal(err)
	}
	defer tables.Close()
	fmt.Println("Tables:")
	for tables.Next() {
		var t string
		if err := tables.Scan(&t); err != nil {
			log.Fatal(err)
		}
		fmt.Println("  " + t)
	}
}
