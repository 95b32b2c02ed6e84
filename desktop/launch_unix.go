//go:build !windows

package desktop

import (
	"os/exec"
	"syscall"

	"al.essio.dev/pkg/shellescape"
)

// commandLine quotes the program name so a path with spaces survives the
// shell. The parameters are passed as the user wrote them.
func commandLine(name, params string) string {
	line := shellescape.Quote(name)
	if params != "" {
		line += " " + params
	}
	return line
}

// detachedCommand runs line with sh in a new session, so the program
// outlives klaxon and doesn't get its terminal's signals.
func detachedCommand(line string) *exec.Cmd {
	cmd := exec.Command("/bin/sh", "-c", line)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	return cmd
}
