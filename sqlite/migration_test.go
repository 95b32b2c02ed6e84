package sqlite_test

import (
	"strings"
	"testing"
	"testing/fstest"

	ksqlite "bsid.es/klaxon/sqlite"
	"bsid.es/klaxon/sqlite/migration"
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

func script(sql string) *fstest.MapFile {
	return &fstest.MapFile{Data: []byte(sql)}
}

func TestMigrateIncrementally(t *testing.T) {
	conn := openMemConn(t)

	// Each step adds files to the same directory and migrates again.
	steps := []struct {
		name    string
		add     fstest.MapFS
		version int
		tables  string
	}{{
		name:    "no scripts",
		add:     fstest.MapFS{},
		version: 0,
		tables:  "",
	}, {
		name:    "first script",
		add:     fstest.MapFS{"0000.sql": script("create table alarm (id text);")},
		version: 1,
		tables:  "alarm",
	}, {
		name: "two statements",
		add: fstest.MapFS{"0001.sql": script(`
			create table sound (path text);
			create index sound_path on sound (path);
		`)},
		version: 2,
		tables:  "alarm,sound",
	}, {
		name:    "not sql",
		add:     fstest.MapFS{"0002.md": script("create table notes (a text);")},
		version: 2,
		tables:  "alarm,sound",
	}}

	fsys := fstest.MapFS{}
	for _, step := range steps {
		for name, f := range step.add {
			fsys[name] = f
		}
		if err := ksqlite.Migrate(conn, fsys); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := userVersion(t, conn); got != step.version {
			t.Errorf("%s: wrong version\ngot:  %d\nwant: %d", step.name, got, step.version)
		}
		if got := tables(t, conn); got != step.tables {
			t.Errorf("%s: wrong tables\ngot:  %q\nwant: %q", step.name, got, step.tables)
		}
	}
}

func TestMigrateBundledScripts(t *testing.T) {
	conn := openMemConn(t)
	for run := 1; run <= 2; run++ {
		if err := ksqlite.Migrate(conn, migration.Scripts); err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
	}
	if got := tables(t, conn); !strings.Contains(","+got+",", ",alarm,") {
		t.Errorf("alarm table missing, have %q", got)
	}
}

func TestMigrateRollsBackOnError(t *testing.T) {
	conn := openMemConn(t)
	fsys := fstest.MapFS{
		"0000.sql": script("create table alarm (id text);"),
		"0001.sql": script("create tabel sound (path text);"),
	}
	err := ksqlite.Migrate(conn, fsys)
	if err == nil || !strings.Contains(err.Error(), "0001.sql") {
		t.Fatalf("error should name the broken script, got %v", err)
	}
	if got := userVersion(t, conn); got != 0 {
		t.Errorf("version moved to %d", got)
	}
	if got := tables(t, conn); got != "" {
		t.Errorf("tables left behind: %q", got)
	}
}

func openMemConn(tb testing.TB) *sqlite.Conn {
	tb.Helper()
	conn, err := sqlite.OpenConn(":memory:", 0)
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() {
		if err := conn.Close(); err != nil {
			tb.Error(err)
		}
	})
	return conn
}

func userVersion(tb testing.TB, conn *sqlite.Conn) int {
	tb.Helper()
	var v int
	err := sqlitex.Exec(conn, "pragma user_version", func(stmt *sqlite.Stmt) error {
		v = stmt.ColumnInt(0)
		return nil
	})
	if err != nil {
		tb.Fatal(err)
	}
	return v
}

// tables lists the user tables of conn, comma separated and sorted.
func tables(tb testing.TB, conn *sqlite.Conn) string {
	tb.Helper()
	var names []string
	err := sqlitex.Exec(conn,
		"select name from sqlite_master where type = 'table' and name not like 'sqlite_%' order by name",
		func(stmt *sqlite.Stmt) error {
			names = append(names, stmt.ColumnText(0))
			return nil
		})
	if err != nil {
		tb.Fatal(err)
	}
	return strings.Join(names, ",")
}
