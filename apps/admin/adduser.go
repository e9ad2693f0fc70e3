package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/elimu/core/auth"
	"github.com/trezcool/elimu/core/user"
)

// addUser creates an active user of any role, admins included.
func (cli *commandLine) addUser(name, email, role, pwd string) error {
	nu := user.NewUser{
		Name:     name,
		Email:    email,
		Password: pwd,
		Role:     auth.Role(strings.ToUpper(strings.TrimSpace(role))),
	}
	nu.Clean()

	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("created %s %s (%s)\n", usr.Role, usr.Email, usr.ID)
	return nil
}
