package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/trezcool/schooldesk/core/user"
)

func (cli *commandLine) addToWhitelist(email, role string) error {
	entry := user.WhitelistEntry{Email: email, Role: role, AddedBy: "admin-cli"}
	if err := entry.Validate(cli.validate); err != nil {
		return err
	}
	entry, err := cli.usrSvc.AddToWhitelist(context.Background(), entry)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s may now sign in as %s\n", entry.Email, entry.Role)
	return nil
}

func (cli *commandLine) removeFromWhitelist(email string) error {
	return cli.usrSvc.RemoveFromWhitelist(context.Background(), email)
}

func (cli *commandLine) listWhitelist() error {
	entries, err := cli.usrSvc.QueryWhitelist(context.Background())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EMAIL\tROLE\tADDED BY\tADDED AT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Email, e.Role, e.AddedBy, e.CreatedAt.Format("2006-01-02"))
	}
	return w.Flush()
}
