package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/trezcool/escuela/client/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp        = errors.New("help provided")
	errNotLoggedIn = errors.New("not logged in")
)

type commandLine struct {
	conf     *viper.Viper
	logger   *zap.Logger
	out      io.Writer
	store    *session.SQLiteStore
	provider *session.Provider
}

func newCommandLine(out io.Writer, logger *zap.Logger) *commandLine {
	v := viper.New()
	v.SetEnvPrefix("ESCUELA")
	v.AutomaticEnv()
	v.SetDefault("server", "http://localhost:3000")
	v.SetDefault("session", defaultSessionPath())
	v.SetDefault("timeout", 10*time.Second)
	return &commandLine{conf: v, logger: logger, out: out}
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "escuela", "session.db")
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "escuela",
		Short:             "Escuela command line client",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: cli.openSession,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = cmd.Help()
			return errHelp
		},
	}
	root.SetOut(cli.out)
	root.SetErr(cli.out)

	flags := root.PersistentFlags()
	flags.String("server", cli.conf.GetString("server"), "API base URL [ESCUELA_SERVER]")
	flags.String("session", cli.conf.GetString("session"), "session file [ESCUELA_SESSION]")
	_ = cli.conf.BindPFlag("server", flags.Lookup("server"))
	_ = cli.conf.BindPFlag("session", flags.Lookup("session"))

	root.AddCommand(
		cli.loginCmd(),
		cli.logoutCmd(),
		cli.whoamiCmd(),
		cli.homeCmd(),
		cli.getCmd(),
	)
	return root
}

// run executes the command line; args[0] is the program name.
func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args[1:])
	err := root.ExecuteContext(ctx)
	if cerr := cli.close(); err == nil {
		err = cerr
	}
	return err
}

func (cli *commandLine) openSession(cmd *cobra.Command, _ []string) error {
	if cli.provider != nil {
		return nil
	}
	path := cli.conf.GetString("session")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	store, err := session.OpenSQLiteStore(cmd.Context(), path)
	if err != nil {
		return err
	}

	client := resty.New().
		SetBaseURL(cli.conf.GetString("server")).
		SetTimeout(cli.conf.GetDuration("timeout")).
		SetHeader("Accept", "application/json").
		SetLogger(cli.logger.Sugar())

	cli.store = store
	cli.provider = session.New(client, store)
	return cli.provider.Restore(cmd.Context())
}

func (cli *commandLine) close() error {
	if cli.store == nil {
		return nil
	}
	err := cli.store.Close()
	cli.store, cli.provider = nil, nil
	return err
}

func (cli *commandLine) promptPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "Password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
