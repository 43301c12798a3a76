package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/matembezi/core/adventure"
	"github.com/trezcool/matembezi/core/tasks"
	"github.com/trezcool/matembezi/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	users      user.ServiceInterface
	adventures *adventure.Service
	jobs       *tasks.Registry
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose command on the database (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  adduser -username USERNAME -email EMAIL [-name NAME] [-admin] - create or update a user")
	fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Fprintln(cli.out, "  runjob -type TYPE [-params JSON] - run a background job now")
	fmt.Fprintln(cli.out, "  exportadventure -id ID [-out FILE] - write an adventure as YAML")
	fmt.Fprintln(cli.out, "  importadventure -file FILE -username OWNER [-id ID] - create an adventure from YAML")
}

// promptPassword reads a password from the terminal without echoing it.
func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Give the user every role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	runJobCmd := flag.NewFlagSet("runjob", flag.ExitOnError)
	runJobType := runJobCmd.String("type", "", "The job type.")
	runJobParams := runJobCmd.String("params", "", "The job params, as a JSON object.")

	exportCmd := flag.NewFlagSet("exportadventure", flag.ExitOnError)
	exportID := exportCmd.String("id", "", "The adventure id.")
	exportOut := exportCmd.String("out", "", "The file to write. Defaults to stdout.")

	importCmd := flag.NewFlagSet("importadventure", flag.ExitOnError)
	importFile := importCmd.String("file", "", "The YAML file to import.")
	importUname := importCmd.String("username", "", "The username or email of the new adventure's owner.")
	importID := importCmd.String("id", "", "The new adventure id. Generated when empty.")

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
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "runjob":
		if err := runJobCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *runJobType == "" {
			runJobCmd.Usage()
			return errHelp
		}
		return cli.runJob(*runJobType, *runJobParams)

	case "exportadventure":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *exportID == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportAdventure(*exportID, *exportOut)

	case "importadventure":
		if err := importCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *importFile == "" || *importUname == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importAdventure(*importFile, *importUname, *importID)

	default:
		cli.printUsage()
		return errHelp
	}
}
