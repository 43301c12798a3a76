package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core/rights"
)

// exporter is allowed to read any adventure.
var exporter = rights.Actor{ID: "admin", IsAdmin: true}

func (cli *commandLine) exportAdventure(id, out string) error {
	content, err := cli.adventures.ExportYAML(context.Background(), exporter, id)
	if err != nil {
		return err
	}
	if out == "" {
		_, err = cli.out.Write(content)
		return err
	}
	return errors.Wrapf(os.WriteFile(out, content, 0o644), "writing %s", out)
}

// importAdventure creates a private adventure owned by the user named uname.
func (cli *commandLine) importAdventure(file, uname, id string) error {
	ctx := context.Background()
	owner, err := cli.users.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(file)
	if err != nil {
		return errors.Wrapf(err, "reading %s", file)
	}
	ent, err := cli.adventures.ImportYAML(ctx, owner.Actor(), id, content)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported adventure %s (version %d)\n", ent.ID, ent.Version)
	return nil
}
