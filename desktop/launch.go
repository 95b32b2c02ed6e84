package desktop

import (
	"errors"
	"strings"
)

// Launch runs the program name with the command-line parameters params
// through the platform shell, detached from this process. It returns once
// the program started; the process is reaped in the background.
func Launch(name, params string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("no program name")
	}
	cmd := detachedCommand(commandLine(name, strings.TrimSpace(params)))
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}
