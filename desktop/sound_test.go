package desktop_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"testing"

	"bsid.es/klaxon/desktop"
	"github.com/spf13/afero"
)

func TestCommandPlayerMissingFile(t *testing.T) {
	p := desktop.NewCommandPlayer("true")
	p.Fs = afero.NewMemMapFs()
	err := p.Play(context.Background(), "/sounds/bell.oga")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("wrong error\ngot:  %v\nwant: file not found", err)
	}
}

func TestCommandPlayerNoCommand(t *testing.T) {
	p := desktop.NewCommandPlayer()
	if err := p.Play(context.Background(), "/sounds/bell.oga"); err == nil {
		t.Error("expected error")
	}
}

func TestCommandPlayerRunsCommand(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("true not available")
	}
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/sounds/bell.oga", []byte("OggS"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := desktop.NewCommandPlayer("true")
	p.Fs = fs
	if err := p.Play(context.Background(), "/sounds/bell.oga"); err != nil {
		t.Error(err)
	}
}
