package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trezcool/escuela/client/session"
)

func (cli *commandLine) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "log in and keep the session on this machine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.promptPassword(cmd)
			if err != nil {
				return err
			}
			if err := cli.provider.Login(cmd.Context(), email, pwd); err != nil {
				return err
			}
			usr, _ := cli.provider.CurrentUser()
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s (%s)\n", usr.Email, usr.Rol)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "your email")
	return cmd
}

func (cli *commandLine) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "forget the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cli.provider.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func (cli *commandLine) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "print the logged in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			usr, ok := cli.provider.CurrentUser()
			if !ok {
				return errNotLoggedIn
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", usr.ID, usr.Email, usr.Nombre, usr.Rol)
			return nil
		},
	}
}

func (cli *commandLine) homeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "home [SCREEN]",
		Short: "print the screen shown for SCREEN (defaults to your home)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			screen := session.ScreenLogin
			if len(args) == 1 {
				screen = session.Screen(args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), session.Resolve(cli.provider, screen))
			return nil
		},
	}
}

func (cli *commandLine) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get PATH",
		Short: "send an authorized GET request and print the JSON answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if !strings.HasPrefix(path, "/") {
				path = "/" + path
			}

			resp, err := cli.provider.AuthorizedRequest(cmd.Context()).Get(path)
			if err != nil {
				return err
			}
			if resp.IsError() {
				var body struct {
					Message string `json:"message"`
				}
				_ = json.Unmarshal(resp.Body(), &body)
				return &session.Error{Status: resp.StatusCode(), Message: body.Message}
			}

			var out bytes.Buffer
			if err := json.Indent(&out, resp.Body(), "", "  "); err != nil {
				out.Reset()
				out.Write(resp.Body())
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			return nil
		},
	}
}
