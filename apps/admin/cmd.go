package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/aulaprof/aula/core/document"
	"github.com/aulaprof/aula/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db     *sql.DB
	usrSvc *user.Service
	store  document.ObjectStore
	docSvc *document.Service
	out    io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]          - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL [-name N]  - create or reactivate a professor; the password is prompted")
	fmt.Fprintln(cli.out, "  provision                       - create the storage buckets of every upload flow")
	fmt.Fprintln(cli.out, "  audit [-flow NAME] [-fix]       - compare stored objects with their metadata rows")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserEmail := addUserCmd.String("email", "", "The professor's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The professor's display name.")

	auditCmd := flag.NewFlagSet("audit", flag.ExitOnError)
	auditFlow := auditCmd.String("flow", "", "Only audit this flow (files, syllabi, pdfs).")
	auditFix := auditCmd.Bool("fix", false, "Remove the orphaned objects found.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserName, string(pwd))
	case "provision":
		return cli.provision()
	case "audit":
		if err := auditCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.audit(*auditFlow, *auditFix)
	default:
		cli.printUsage()
		return errHelp
	}
}
