// Command migrate applies the SQL files under migrations/ to the database
// named by DATABASE_URL. Files run in lexical order, each in its own
// transaction; the first failure stops the run so later files never build
// on a half-applied schema.
package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the ordered *.sql files")
	showTables := flag.Bool("tables", false, "print the public schema's tables instead of migrating")
	flag.Parse()

	_ = godotenv.Load()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fatalf("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		fatalf("reach database: %v", err)
	}

	if *showTables {
		if err := printTables(db); err != nil {
			fatalf("list tables: %v", err)
		}
		return
	}

	applied, err := apply(db, *dir)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("applied %d migration(s)\n", applied)
}

// apply runs every non-empty .sql file in dir, sorted by name, and returns
// how many were applied before stopping.
func apply(db *sql.DB, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	applied := 0
	for _, name := range files {
		path := filepath.Join(dir, name)
		stmts, err := os.ReadFile(path)
		if err != nil {
			return applied, fmt.Errorf("read %s: %w", path, err)
		}
		if strings.TrimSpace(string(stmts)) == "" {
			continue
		}
		if err := applyOne(db, string(stmts)); err != nil {
			return applied, fmt.Errorf("%s: %w", name, err)
		}
		fmt.Printf("%s ok\n", name)
		applied++
	}
	return applied, nil
}

func applyOne(db *sql.DB, stmts string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(stmts); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func printTables(db *sql.DB) error {
	rows, err := db.Query(`SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		fmt.Println(name)
	}
	return rows.Err()
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "migrate: "+format+"\n", args...)
	os.Exit(1)
}
