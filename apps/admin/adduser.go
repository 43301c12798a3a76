package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/user"
)

// addUser updates or creates an active user. Admins get every role, other users are authors.
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name == "" {
		name = uname
	}
	roles := user.AuthorRoles
	if isAdmin {
		roles = user.AllRoles
	}

	usr, err := cli.users.GetByUsernameOrEmail(ctx, uname)
	if err != nil && !core.IsNotFound(err) {
		return err
	}
	if err == nil {
		active := true
		_, err = cli.users.Update(ctx, usr.ID, user.UpdateUser{
			Name:     name,
			Username: uname,
			Email:    email,
			IsActive: &active,
			Roles:    roles,
			Password: pwd,
		})
		return errors.Wrapf(err, "updating user %s", uname)
	}

	if err = cli.users.CheckUniqueness(ctx, uname, email); err != nil {
		return err
	}
	_, err = cli.users.Create(ctx, user.NewUser{
		Name:     name,
		Username: uname,
		Email:    email,
		Password: pwd,
		Roles:    roles,
	})
	return errors.Wrapf(err, "creating user %s", uname)
}
