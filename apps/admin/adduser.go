package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/escuela/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var nu user.NewUser
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "create a user; the password is prompted next",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, nu.Email, nu.Nombre); err != nil {
				return err
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			nu.Password = pwd

			// the command line is trusted like an admin
			usr, err := cli.usrSvc.Register(cmd.Context(), nu, user.User{Rol: user.RoleAdmin})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d (%s) created\n", usr.ID, usr.Rol)
			return nil
		},
	}
	cmd.Flags().StringVar(&nu.Email, "email", "", "the user's email")
	cmd.Flags().StringVar(&nu.Nombre, "nombre", "", "the user's first name")
	cmd.Flags().StringVar(&nu.ApellidoPaterno, "apellido-paterno", "", "the user's first last name")
	cmd.Flags().StringVar(&nu.ApellidoMaterno, "apellido-materno", "", "the user's second last name")
	cmd.Flags().StringVar(&nu.Rol, "rol", user.RoleAdmin.String(), "one of admin, docente, aspirante")
	return cmd
}
