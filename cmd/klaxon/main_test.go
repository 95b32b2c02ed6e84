package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bsid.es/klaxon"
	"bsid.es/klaxon/config"
	"bsid.es/klaxon/desktop"
	"github.com/spf13/afero"
)

const testConfigPath = "/etc/klaxon.yaml"

// Monday.
var testNow = time.Date(2024, 3, 4, 7, 0, 0, 0, time.Local)

func newTestApp(t *testing.T) (*app, *bytes.Buffer) {
	t.Helper()
	fs := afero.NewMemMapFs()
	db := filepath.Join(t.TempDir(), "alarms.db")
	conf := "database: " + db + "\nnotify:\n  backend: none\n"
	if err := afero.WriteFile(fs, testConfigPath, []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout bytes.Buffer
	return &app{
		fs:     fs,
		stdout: &stdout,
		stderr: &bytes.Buffer{},
		now:    func() time.Time { return testNow },
	}, &stdout
}

func runApp(t *testing.T, a *app, args ...string) error {
	t.Helper()
	return a.cli().Run(append([]string{"klaxon", "--config", testConfigPath}, args...))
}

func mustRun(t *testing.T, a *app, stdout *bytes.Buffer, args ...string) string {
	t.Helper()
	stdout.Reset()
	if err := runApp(t, a, args...); err != nil {
		t.Fatalf("klaxon %s: %v", strings.Join(args, " "), err)
	}
	return stdout.String()
}

type jsonItem struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Enabled bool       `json:"enabled"`
	Type    string     `json:"type"`
	Next    *time.Time `json:"next"`
}

func listJSON(t *testing.T, a *app, stdout *bytes.Buffer) []jsonItem {
	t.Helper()
	var items []jsonItem
	if err := json.Unmarshal([]byte(mustRun(t, a, stdout, "list", "--json")), &items); err != nil {
		t.Fatal(err)
	}
	return items
}

func TestAlarmLifecycle(t *testing.T) {
	a, stdout := newTestApp(t)

	out := mustRun(t, a, stdout, "add", "--name", "bins", "--at", "08:00", "--days", "mon,wed")
	if !strings.Contains(out, "08:00 on mon,wed") {
		t.Errorf("wrong add output: %s", out)
	}

	items := listJSON(t, a, stdout)
	if len(items) != 1 {
		t.Fatalf("wrong alarm count\ngot:  %d\nwant: 1", len(items))
	}
	bins := items[0]
	if bins.Type != "weekly" || !bins.Enabled {
		t.Errorf("wrong alarm: %+v", bins)
	}
	if want := time.Date(2024, 3, 4, 8, 0, 0, 0, time.Local); bins.Next == nil || !bins.Next.Equal(want) {
		t.Errorf("wrong next time\ngot:  %v\nwant: %v", bins.Next, want)
	}

	out = mustRun(t, a, stdout, "list")
	for _, want := range []string{"bins", "08:00 on mon,wed", "Mon 08:00", "window"} {
		if !strings.Contains(out, want) {
			t.Errorf("list output misses %q\ngot:\n%s", want, out)
		}
	}

	mustRun(t, a, stdout, "disable", bins.ID[:8])
	if out := mustRun(t, a, stdout, "next"); !strings.Contains(out, "no alarm is due") {
		t.Errorf("disabled alarm reported as next: %s", out)
	}

	mustRun(t, a, stdout, "enable", bins.ID)
	mustRun(t, a, stdout, "modify", "--every", "30m", "--at", "06:00", bins.ID)
	out = mustRun(t, a, stdout, "next")
	if !strings.Contains(out, `"bins" Mon 07:00`) {
		t.Errorf("wrong next alarm: %s", out)
	}
	if items := listJSON(t, a, stdout); items[0].Type != "interval" {
		t.Errorf("alarm not turned into an interval alarm: %+v", items[0])
	}

	mustRun(t, a, stdout, "remove", bins.ID)
	if out := mustRun(t, a, stdout, "list"); !strings.Contains(out, "no alarms") {
		t.Errorf("alarm not removed: %s", out)
	}
}

func TestEveryZero(t *testing.T) {
	tests := []struct {
		name string
		args []string
		typ  string
		sch  string
	}{{
		name: "drops the days",
		args: []string{"--every", "0"},
		typ:  "single",
		sch:  "08:00 once",
	}, {
		name: "with new days",
		args: []string{"--every", "0", "--days", "sat"},
		typ:  "weekly",
		sch:  "08:00 on sat",
	}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, stdout := newTestApp(t)
			mustRun(t, a, stdout, "add", "--name", "bins", "--at", "08:00", "--days", "mon,wed")
			id := listJSON(t, a, stdout)[0].ID

			out := mustRun(t, a, stdout, append(append([]string{"modify"}, tt.args...), id)...)
			if !strings.Contains(out, tt.sch) {
				t.Errorf("wrong schedule\ngot:  %s\nwant: %s", out, tt.sch)
			}
			if got := listJSON(t, a, stdout)[0].Type; got != tt.typ {
				t.Errorf("wrong type\ngot:  %s\nwant: %s", got, tt.typ)
			}
		})
	}
}

func TestAddKeepsListOrder(t *testing.T) {
	a, stdout := newTestApp(t)
	for _, name := range []string{"c", "a", "b"} {
		mustRun(t, a, stdout, "add", "--name", name, "--at", "09:00")
	}
	var got []string
	for _, item := range listJSON(t, a, stdout) {
		got = append(got, item.Name)
	}
	if want := "c,a,b"; strings.Join(got, ",") != want {
		t.Errorf("wrong order\ngot:  %v\nwant: %v", got, want)
	}
}

func TestPastSingleShotIsNotNext(t *testing.T) {
	a, stdout := newTestApp(t)
	mustRun(t, a, stdout, "add", "--name", "early", "--at", "06:00")
	mustRun(t, a, stdout, "add", "--name", "late", "--at", "21:30")

	out := mustRun(t, a, stdout, "next")
	if !strings.Contains(out, `"late" Mon 21:30`) {
		t.Errorf("wrong next alarm: %s", out)
	}
}

func TestInvalidCommands(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{{
		name: "add without time",
		args: []string{"add", "--name", "tea"},
		code: "invalid",
	}, {
		name: "add without name",
		args: []string{"add", "--at", "07:00"},
		code: "invalid",
	}, {
		name: "bad weekday",
		args: []string{"add", "--name", "tea", "--at", "07:00", "--days", "mon,funday"},
		code: "invalid",
	}, {
		name: "sub-minute interval",
		args: []string{"add", "--name", "tea", "--at", "07:00", "--every", "30s"},
		code: "invalid",
	}, {
		name: "remove unknown",
		args: []string{"remove", "nope"},
		code: "not_found",
	}, {
		name: "modify without id",
		args: []string{"modify", "--name", "tea"},
		code: "invalid",
	}}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp(t)
			err := runApp(t, a, tt.args...)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := string(klaxon.ErrorCode(err)); got != tt.code {
				t.Errorf("wrong error code\ngot:  %s\nwant: %s\nerr:  %v", got, tt.code, err)
			}
		})
	}
}

func TestNotifierBackend(t *testing.T) {
	a, _ := newTestApp(t)
	if err := runApp(t, a, "list"); err != nil {
		t.Fatal(err)
	}

	n, closeNotifier := a.notifier()
	defer closeNotifier()
	if _, ok := n.(desktop.NopNotifier); !ok {
		t.Errorf("wrong notifier for backend none: %T", n)
	}

	a.cfg.Notify.Backend = "terminal"
	n, closeTerminal := a.notifier()
	defer closeTerminal()
	if _, ok := n.(*desktop.TerminalNotifier); !ok {
		t.Errorf("wrong notifier for backend terminal: %T", n)
	}
}

func TestConfigInit(t *testing.T) {
	a, stdout := newTestApp(t)
	const path = "/home/me/.config/klaxon/config.yaml"
	initConfig := func(args ...string) error {
		stdout.Reset()
		return a.cli().Run(append([]string{"klaxon", "--config", path, "config", "init"}, args...))
	}

	if err := initConfig(); err != nil {
		t.Fatal(err)
	}
	if out := stdout.String(); !strings.Contains(out, "wrote "+path) {
		t.Errorf("wrong output: %s", out)
	}
	got, err := config.Load(a.fs, path)
	if err != nil {
		t.Fatal(err)
	}
	want := config.DefaultConfig()
	if got.Notify != want.Notify || got.Period != want.Period || got.Sound.RingLimit != want.Sound.RingLimit {
		t.Errorf("wrong config\ngot:  %+v\nwant: %+v", got, want)
	}

	if err := afero.WriteFile(a.fs, path, []byte("fire_missed: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err = initConfig()
	if code := klaxon.ErrorCode(err); code != klaxon.ErrInvalid {
		t.Fatalf("existing file replaced without --force: %v", err)
	}
	if got, _ := config.Load(a.fs, path); !got.FireMissed {
		t.Error("existing file changed")
	}

	if err := initConfig("--force"); err != nil {
		t.Fatal(err)
	}
	if got, _ := config.Load(a.fs, path); got.FireMissed {
		t.Error("--force kept the old file")
	}
}
