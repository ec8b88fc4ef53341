package main

import (
	"context"
	"fmt"

	"github.com/aulaprof/aula/core"
	"github.com/aulaprof/aula/core/user"
)

// addUser updates or creates a professor account, activating it.
func (cli *commandLine) addUser(email, name, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	if err := user.ValidatePassword(pwd, name, email); err != nil {
		return err
	}
	usr, err := cli.usrSvc.UpdateOrCreate(context.Background(), email, name, pwd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user %s (%s) is ready\n", usr.Email, usr.ID)
	return nil
}
