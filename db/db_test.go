package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestOpenSQL(t *testing.T) {
	ctx := context.Background()

	t.Run("Unsupported driver", func(t *testing.T) {
		if _, err := OpenSQL(ctx, "oracle", "whatever"); err == nil {
			t.Error("Expected error for unsupported driver")
		}
	})

	t.Run("SQLite documents round-trip", func(t *testing.T) {
		store, err := OpenSQL(ctx, "sqlite", filepath.Join(t.TempDir(), "data", "notes.db"))
		if err != nil {
			t.Fatalf("OpenSQL failed: %v", err)
		}
		defer store.Close()

		notes := store.Document("notes")
		users := store.Document("users")

		if _, err := notes.Load(ctx); !errors.Is(err, ErrNoDocument) {
			t.Errorf("Expected ErrNoDocument before first save, got %v", err)
		}

		if err := notes.Save(ctx, []byte(`{"notes": [1]}`)); err != nil {
			t.Fatalf("first Save failed: %v", err)
		}
		if err := notes.Save(ctx, []byte(`{"notes": [2]}`)); err != nil {
			t.Fatalf("second Save failed: %v", err)
		}
		if err := users.Save(ctx, []byte(`{"users": []}`)); err != nil {
			t.Fatalf("users Save failed: %v", err)
		}

		got, err := notes.Load(ctx)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if string(got) != `{"notes": [2]}` {
			t.Errorf("Expected latest body, got %s", got)
		}

		got, _ = users.Load(ctx)
		if string(got) != `{"users": []}` {
			t.Errorf("Documents should be independent, users holds %s", got)
		}

		var rows int
		store.DB.QueryRow("SELECT COUNT(*) FROM documents").Scan(&rows)
		if rows != 2 {
			t.Errorf("Expected 2 rows, got %d", rows)
		}

		if notes.String() != "sqlite:notes" {
			t.Errorf("Unexpected document name %s", notes.String())
		}
	})

	t.Run("Reopening keeps saved documents", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.db")
		first, err := OpenSQL(ctx, "sqlite", path)
		if err != nil {
			t.Fatalf("OpenSQL failed: %v", err)
		}
		first.Document("users").Save(ctx, []byte(`[]`))
		first.Close()

		second, err := OpenSQL(ctx, "sqlite", path)
		if err != nil {
			t.Fatalf("reopen failed: %v", err)
		}
		defer second.Close()

		got, err := second.Document("users").Load(ctx)
		if err != nil || string(got) != "[]" {
			t.Errorf("Expected [] after reopen, got %q (%v)", got, err)
		}
	})
}

func TestDialects(t *testing.T) {
	cases := []struct {
		driver       string
		sqlDriver    string
		placeholders []string
		upsertClause string
	}{
		{"mysql", "mysql", []string{"?"}, "ON DUPLICATE KEY UPDATE body = VALUES(body)"},
		{"postgres", "pgx", []string{"$1", "$2"}, "ON CONFLICT (name) DO UPDATE SET body = EXCLUDED.body"},
		{"sqlite", "sqlite", []string{"?"}, "ON CONFLICT(name) DO UPDATE SET body = excluded.body"},
	}

	if len(dialects) != len(cases) {
		t.Errorf("Expected %d dialects, got %d", len(cases), len(dialects))
	}

	for _, tc := range cases {
		t.Run(tc.driver, func(t *testing.T) {
			d, ok := dialects[tc.driver]
			if !ok {
				t.Fatalf("No dialect for %s", tc.driver)
			}
			if d.sqlDriver != tc.sqlDriver {
				t.Errorf("sqlDriver: got %q want %q", d.sqlDriver, tc.sqlDriver)
			}
			if !slices.Contains(sql.Drivers(), d.sqlDriver) {
				t.Errorf("database/sql driver %q is not registered", d.sqlDriver)
			}
			if !strings.Contains(d.createTable, "CREATE TABLE IF NOT EXISTS documents") {
				t.Errorf("Unexpected create statement %q", d.createTable)
			}
			if !strings.HasPrefix(d.selectBody, "SELECT body FROM documents WHERE name = ") {
				t.Errorf("Unexpected select %q", d.selectBody)
			}
			if !strings.HasPrefix(d.upsert, "INSERT INTO documents (name, body) VALUES ") {
				t.Errorf("Unexpected upsert %q", d.upsert)
			}
			if !strings.Contains(d.upsert, tc.upsertClause) {
				t.Errorf("Upsert %q lacks %q", d.upsert, tc.upsertClause)
			}
			for _, p := range tc.placeholders {
				if !strings.Contains(d.upsert, p) {
					t.Errorf("Upsert %q lacks placeholder %s", d.upsert, p)
				}
			}
			if !strings.Contains(d.selectBody, tc.placeholders[0]) {
				t.Errorf("Select %q lacks placeholder %s", d.selectBody, tc.placeholders[0])
			}
			// Placeholder styles must not be mixed.
			if tc.placeholders[0] == "?" && strings.Contains(d.upsert+d.selectBody, "$") {
				t.Errorf("%s statements use $n placeholders", tc.driver)
			}
			if tc.placeholders[0] != "?" && strings.Contains(d.upsert+d.selectBody, "?") {
				t.Errorf("%s statements use ? placeholders", tc.driver)
			}
		})
	}
}
