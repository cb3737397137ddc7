// Command migrate applies the SQL files in a migrations directory to the
// PostgreSQL database named by DATABASE_URL, in file name order, one
// transaction per file.
//
//	migrate [dir]      apply migrations (default dir: migrations)
//	migrate --list     list wbr_* tables
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

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

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	if listOnly {
		tables, err := listTables(ctx, db)
		if err != nil {
			log.Fatal(err)
		}
		for _, t := range tables {
			fmt.Println(" ", t)
		}
		fmt.Printf("Total: %d tables\n", len(tables))
		return
	}

	files, err := migrationFiles(dir)
	if err != nil {
		log.Fatal(err)
	}
	okCount, errCount := apply(ctx, db, files, os.Stdout)
	log.Printf("Done: %d OK, %d errors", okCount, errCount)
	if errCount > 0 {
		os.Exit(1)
	}
	log.Println("Migrations complete")
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE 'wbr_%' ORDER BY tablename`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// migrationFiles returns the .sql files in dir sorted by name.
func migrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// apply runs each file in its own transaction. A failing file is rolled
// back and the rest still run.
func apply(ctx context.Context, db *sql.DB, files []string, out io.Writer) (okCount, errCount int) {
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(out, "  %s ... READ ERROR: %v\n", filepath.Base(path), err)
			errCount++
			continue
		}
		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}
		fmt.Fprintf(out, "  %s ... ", filepath.Base(path))

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			fmt.Fprintf(out, "BEGIN ERROR: %v\n", err)
			errCount++
			continue
		}
		if _, err := tx.ExecContext(ctx, content); err != nil {
			tx.Rollback()
			fmt.Fprintf(out, "ERROR: %v\n", err)
			errCount++
			continue
		}
		if err := tx.Commit(); err != nil {
			fmt.Fprintf(out, "COMMIT ERROR: %v\n", err)
			errCount++
			continue
		}
		fmt.Fprintln(out, "OK")
		okCount++
	}
	return okCount, errCount
}
