package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/avatarscript/internal/avatar"
	plua "github.com/dshills/avatarscript/internal/script/lua"
)

func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check [dir]",
		Short: "Compile every script of an avatar without running it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := c.cfg.Avatar.Dir
			if len(args) > 0 {
				dir = args[0]
			}
			return c.check(cmd, dir)
		},
	}
}

func (c *cli) check(cmd *cobra.Command, dir string) error {
	bundle, err := avatar.LoadDir(dir)
	if err != nil {
		return err
	}

	state, err := plua.NewState(bundle.Scripts, plua.NewRegistry())
	if err != nil {
		return err
	}
	defer state.Close()

	out := cmd.OutOrStdout()
	failed := 0
	for _, name := range bundle.Scripts.Names() {
		src, _ := bundle.Scripts.Source(name)
		if err := state.Compile(name, src); err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %s\n", name, state.Classify(err).Message)
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", name)
	}

	for _, name := range bundle.Manifest.AutoScripts {
		if _, ok := bundle.Scripts.Source(plua.NormalizeName(name)); !ok {
			failed++
			fmt.Fprintf(out, "FAIL %s: autoScripts entry %q has no script\n", avatar.ManifestFile, name)
		}
	}

	c.logger.Debug("checked avatar", "dir", bundle.Dir, "scripts", bundle.Scripts.Len(), "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d problem(s) in %s", failed, bundle.Name())
	}
	return nil
}
