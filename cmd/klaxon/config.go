package main

import (
	"fmt"

	"bsid.es/klaxon"
	"bsid.es/klaxon/config"
	"github.com/spf13/afero"
	"github.com/urfave/cli"
)

// initConfig writes the default configuration to the --config path.
func (a *app) initConfig(c *cli.Context) error {
	path := c.GlobalString("config")
	exists, err := afero.Exists(a.fs, path)
	if err != nil {
		return err
	}
	if exists && !c.Bool("force") {
		return klaxon.Errorf(klaxon.ErrInvalid, "%s already exists, use --force to replace it", path)
	}
	if err := config.Save(a.fs, path, config.DefaultConfig()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(a.stdout, "wrote %s\n", path)
	return nil
}
