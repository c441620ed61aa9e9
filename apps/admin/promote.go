package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/escuela/core/user"
)

func (cli *commandLine) promoteCmd() *cobra.Command {
	var (
		email   string
		grupoID int
	)
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "turn an aspirante into an alumno of a group",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlags(cmd, email); err != nil {
				return err
			}
			ctx := cmd.Context()
			usr, err := cli.usrSvc.GetByEmail(ctx, email)
			if err != nil {
				return err
			}
			if usr, err = cli.usrSvc.Promote(ctx, usr.ID, user.Promotion{GrupoID: grupoID}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s of group %d\n", usr.Email, usr.Rol, usr.GrupoID.Int)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "the aspirante's email")
	cmd.Flags().IntVar(&grupoID, "grupo", 0, "the group ID")
	return cmd
}
