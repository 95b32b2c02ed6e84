package desktop

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/spf13/afero"
)

// Player plays a sound file once, returning when it finished or ctx is done.
type Player interface {
	Play(ctx context.Context, file string) error
}

// CommandPlayer plays sounds with an external player such as paplay or mpv.
type CommandPlayer struct {
	// Command is the player and its arguments; the file is appended.
	Command []string

	// Fs is where sound files are looked up before playing.
	Fs afero.Fs
}

func NewCommandPlayer(command ...string) *CommandPlayer {
	return &CommandPlayer{
		Command: command,
		Fs:      afero.NewOsFs(),
	}
}

func (p *CommandPlayer) Play(ctx context.Context, file string) error {
	if len(p.Command) == 0 {
		return errors.New("no sound player configured")
	}
	fi, err := p.Fs.Stat(file)
	if err != nil {
		return fmt.Errorf("sound file: %w", err)
	}
	if fi.IsDir() {
		return fmt.Errorf("sound file %s is a directory", file)
	}

	args := append(append([]string(nil), p.Command[1:]...), file)
	cmd := exec.CommandContext(ctx, p.Command[0], args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", p.Command[0], err)
	}
	return nil
}
