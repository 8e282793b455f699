package main

import (
	"context"
	"fmt"

	"github.com/trezcool/schooldesk/core"
	"github.com/trezcool/schooldesk/core/user"
)

// setRole changes the role of the user matching `uid`, either an id or an email.
func (cli *commandLine) setRole(uid, role string) error {
	ctx := context.Background()
	uu := user.UpdateUser{Role: &role}
	if err := uu.Validate(cli.validate); err != nil {
		return err
	}

	usr, err := cli.findUser(ctx, uid)
	if err != nil {
		return err
	}
	if usr, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s (%s) is now %s\n", usr.DisplayName, usr.Email, usr.Role)
	return nil
}

func (cli *commandLine) findUser(ctx context.Context, uid string) (user.User, error) {
	usr, err := cli.usrSvc.GetByID(ctx, uid)
	if err == nil || !core.IsKind(err, core.KindNotFound) {
		return usr, err
	}

	email := core.CleanString(uid, true /* lower */)
	users, err := cli.usrSvc.Query(ctx, &user.QueryFilter{Search: email}, nil)
	if err != nil {
		return user.User{}, err
	}
	for _, u := range users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}
