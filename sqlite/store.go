package sqlite

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bsid.es/klaxon"
	"bsid.es/klaxon/sqlite/migration"
	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/hashicorp/go-multierror"
)

// Store keeps the alarm list in a sqlite database, one row per alarm, in the
// order the alarms were created.
type Store struct {
	mu   sync.Mutex
	conn *sqlite.Conn

	dataVersion int64
	seen        bool
}

var _ klaxon.Store = (*Store)(nil)

// Open opens the database at path, creating and migrating it as needed.
// Use ":memory:" for a private in-memory database.
func Open(path string) (*Store, error) {
	conn, err := sqlite.OpenConn(path, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := Migrate(conn, migration.Scripts); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// lock takes the connection for the duration of one call, interrupting any
// running statement when ctx is done.
func (s *Store) lock(ctx context.Context) (*sqlite.Conn, func()) {
	s.mu.Lock()
	s.conn.SetInterrupt(ctx.Done())
	return s.conn, func() {
		s.conn.SetInterrupt(nil)
		s.mu.Unlock()
	}
}

const selectAlarm = `select id, name, type, start_time, interval_minutes, week_days,
	enabled, play_sound, sound_file, show_window, exec_program, exec_name, exec_params
	from alarm`

// Definitions returns the saved alarms in list order.
//
// A row that can't be decoded is skipped. The alarms that could be read are
// returned along with an ErrInvalid error listing the skipped rows.
func (s *Store) Definitions(ctx context.Context) ([]*klaxon.Definition, error) {
	conn, unlock := s.lock(ctx)
	defer unlock()

	var (
		defs []*klaxon.Definition
		bad  *multierror.Error
	)
	err := sqlitex.Exec(conn, selectAlarm+" order by position, id", func(stmt *sqlite.Stmt) error {
		def, err := scanDefinition(stmt)
		if err != nil {
			bad = multierror.Append(bad, fmt.Errorf("alarm %s: %w", stmt.GetText("id"), err))
			return nil
		}
		defs = append(defs, def)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list alarms: %w", err)
	}
	return defs, bad.ErrorOrNil()
}

// Definition returns the alarm with the given id, or an ErrNotFound error.
func (s *Store) Definition(ctx context.Context, id string) (*klaxon.Definition, error) {
	conn, unlock := s.lock(ctx)
	defer unlock()

	var def *klaxon.Definition
	err := sqlitex.Exec(conn, selectAlarm+" where id = ?", func(stmt *sqlite.Stmt) (err error) {
		def, err = scanDefinition(stmt)
		return err
	}, id)
	if err != nil {
		return nil, fmt.Errorf("get alarm %s: %w", id, err)
	}
	if def == nil {
		return nil, klaxon.Errorf(klaxon.ErrNotFound, "no alarm with id %q", id)
	}
	return def, nil
}

// Put saves def, replacing the alarm with the same id in place or appending
// it to the end of the list.
func (s *Store) Put(ctx context.Context, def *klaxon.Definition) (err error) {
	if def.ID == "" {
		return klaxon.Errorf(klaxon.ErrInvalid, "alarm id is required")
	}
	conn, unlock := s.lock(ctx)
	defer unlock()

	release := sqlitex.Save(conn)
	defer release(&err)

	var pos int64 = -1
	if err := sqlitex.Exec(conn, "select position from alarm where id = ?", func(stmt *sqlite.Stmt) error {
		pos = stmt.ColumnInt64(0)
		return nil
	}, def.ID); err != nil {
		return fmt.Errorf("get alarm position: %w", err)
	}
	if pos < 0 {
		if err := sqlitex.Exec(conn, "select coalesce(max(position), -1) + 1 from alarm", func(stmt *sqlite.Stmt) error {
			pos = stmt.ColumnInt64(0)
			return nil
		}); err != nil {
			return fmt.Errorf("get next position: %w", err)
		}
	}

	a := def.Action
	err = sqlitex.Exec(conn, `insert or replace into alarm (id, position, name, type, start_time,
		interval_minutes, week_days, enabled, play_sound, sound_file, show_window,
		exec_program, exec_name, exec_params)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, nil,
		def.ID, pos, def.Name, def.Type.String(), def.Start.String(),
		int64(def.Interval/time.Minute), int64(def.Days), boolInt(def.Enabled),
		boolInt(a.PlaySound), a.SoundFile, boolInt(a.ShowWindow),
		boolInt(a.ExecProgram), a.ExecName, a.ExecParams,
	)
	if err != nil {
		return fmt.Errorf("save alarm %s: %w", def.ID, err)
	}
	return nil
}

// Delete removes an alarm, or returns an ErrNotFound error.
func (s *Store) Delete(ctx context.Context, id string) error {
	conn, unlock := s.lock(ctx)
	defer unlock()

	if err := sqlitex.Exec(conn, "delete from alarm where id = ?", nil, id); err != nil {
		return fmt.Errorf("delete alarm %s: %w", id, err)
	}
	if conn.Changes() == 0 {
		return klaxon.Errorf(klaxon.ErrNotFound, "no alarm with id %q", id)
	}
	return nil
}

func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool) error {
	conn, unlock := s.lock(ctx)
	defer unlock()

	if err := sqlitex.Exec(conn, "update alarm set enabled = ? where id = ?", nil, boolInt(enabled), id); err != nil {
		return fmt.Errorf("update alarm %s: %w", id, err)
	}
	if conn.Changes() == 0 {
		return klaxon.Errorf(klaxon.ErrNotFound, "no alarm with id %q", id)
	}
	return nil
}

// Changed reports whether another connection wrote to the database since the
// previous call. Writes made through this Store don't count.
func (s *Store) Changed(ctx context.Context) (bool, error) {
	conn, unlock := s.lock(ctx)
	defer unlock()

	var v int64
	if err := sqlitex.ExecTransient(conn, "pragma data_version", func(stmt *sqlite.Stmt) error {
		v = stmt.ColumnInt64(0)
		return nil
	}); err != nil {
		return false, fmt.Errorf("get data version: %w", err)
	}
	changed := !s.seen || v != s.dataVersion
	s.seen, s.dataVersion = true, v
	return changed, nil
}

func scanDefinition(stmt *sqlite.Stmt) (*klaxon.Definition, error) {
	typ, err := klaxon.ParseType(stmt.GetText("type"))
	if err != nil {
		return nil, err
	}
	start, err := klaxon.ParseTimeOfDay(stmt.GetText("start_time"))
	if err != nil {
		return nil, err
	}
	return &klaxon.Definition{
		ID:       stmt.GetText("id"),
		Name:     stmt.GetText("name"),
		Type:     typ,
		Start:    start,
		Interval: time.Duration(stmt.GetInt64("interval_minutes")) * time.Minute,
		Days:     klaxon.Weekdays(stmt.GetInt64("week_days")),
		Enabled:  stmt.GetInt64("enabled") != 0,
		Action: klaxon.Action{
			PlaySound:   stmt.GetInt64("play_sound") != 0,
			SoundFile:   stmt.GetText("sound_file"),
			ShowWindow:  stmt.GetInt64("show_window") != 0,
			ExecProgram: stmt.GetInt64("exec_program") != 0,
			ExecName:    stmt.GetText("exec_name"),
			ExecParams:  stmt.GetText("exec_params"),
		},
	}, nil
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
