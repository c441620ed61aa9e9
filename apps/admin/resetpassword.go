package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/escuela/core/user"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "reset user's password; the password is prompted next",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, email); err != nil {
				return err
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			return cli.resetPassword(cmd, email, pwd)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the user's email")
	return cmd
}

func (cli *commandLine) resetPassword(cmd *cobra.Command, email, pwd string) error {
	ctx := cmd.Context()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if _, err = cli.usrSvc.Update(ctx, usr.ID, user.UpdateUser{Password: pwd}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "password of %s updated\n", usr.Email)
	return nil
}
