package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/schooldesk/core/task"
	"github.com/trezcool/schooldesk/core/user"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	db       *sql.DB
	usrSvc   *user.Service
	taskSvc  *task.Service
	validate *validator.Validate
	in       io.Reader
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                   - run a goose command (up, down, status, create NAME sql, ...)")
	fmt.Fprintln(cli.out, "  whitelist add -email EMAIL [-role ROLE]  - allow an email to sign in")
	fmt.Fprintln(cli.out, "  whitelist remove -email EMAIL            - revoke an email")
	fmt.Fprintln(cli.out, "  whitelist list                           - print the whitelist")
	fmt.Fprintln(cli.out, "  setrole -user UID|EMAIL -role ROLE       - change a user's role")
	fmt.Fprintln(cli.out, "  sweep-intents [-older-than 1h] [-yes]    - clean up abandoned report uploads")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "whitelist":
		return cli.runWhitelist(args[2:])

	case "setrole":
		setRoleCmd := cli.newFlagSet("setrole")
		uid := setRoleCmd.String("user", "", "The user's id or email.")
		role := setRoleCmd.String("role", "", "One of: "+strings.Join(user.AllRoles, ", ")+".")
		if err := setRoleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *uid == "" || *role == "" {
			setRoleCmd.Usage()
			return errHelp
		}
		return cli.setRole(*uid, *role)

	case "sweep-intents":
		sweepCmd := cli.newFlagSet("sweep-intents")
		olderThan := sweepCmd.Duration("older-than", time.Hour, "Only intents untouched for that long are swept.")
		yes := sweepCmd.Bool("yes", false, "Do not ask for confirmation.")
		if err := sweepCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *olderThan <= 0 {
			sweepCmd.Usage()
			return errHelp
		}
		if !*yes {
			if err := cli.confirm(fmt.Sprintf("Sweep submission intents older than %v?", *olderThan)); err != nil {
				return err
			}
		}
		return cli.sweepIntents(*olderThan)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) runWhitelist(args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	switch args[0] {
	case "add":
		addCmd := cli.newFlagSet("whitelist add")
		email := addCmd.String("email", "", "The email allowed to sign in.")
		role := addCmd.String("role", user.RoleTeacher, "The role given on first sign-in.")
		if err := addCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *email == "" {
			addCmd.Usage()
			return errHelp
		}
		return cli.addToWhitelist(*email, *role)

	case "remove":
		removeCmd := cli.newFlagSet("whitelist remove")
		email := removeCmd.String("email", "", "The email to revoke.")
		if err := removeCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *email == "" {
			removeCmd.Usage()
			return errHelp
		}
		return cli.removeFromWhitelist(*email)

	case "list":
		return cli.listWhitelist()

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// confirm asks for a y/N answer on interactive sessions. Non-interactive runs must pass -yes.
func (cli *commandLine) confirm(question string) error {
	if !isTerminalFunc(syscall.Stdin) {
		return errors.New("not a terminal: pass -yes to proceed")
	}
	fmt.Fprintf(cli.out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errAborted
	}
}
