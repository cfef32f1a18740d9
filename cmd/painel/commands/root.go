// Package commands implements the painel command line client.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	apiclient "github.com/Juauvitorsm/painel-empresas/pkg/api/client"
	"github.com/Juauvitorsm/painel-empresas/pkg/config"
	"github.com/Juauvitorsm/painel-empresas/pkg/insights"
	"github.com/Juauvitorsm/painel-empresas/pkg/logger"
	"github.com/Juauvitorsm/painel-empresas/pkg/resource"
	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

var buildVersion = "dev"

const commandTimeout = 30 * time.Second

// app is the wiring shared by every subcommand, built once flags are parsed.
type app struct {
	home    string
	apiBase string

	log     *slog.Logger
	store   *session.FileStore
	auth    *session.Auth
	api     *apiclient.Client
	records *resource.Controller
	views   *insights.Service
}

// Execute runs the CLI against os.Args.
func Execute() error {
	if err := NewRootCommand(os.Stderr).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

// NewRootCommand builds the command tree. Diagnostics are logged to logOut.
func NewRootCommand(logOut io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "painel",
		Short:         "Command line client for the company dashboard API",
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(logOut)
		},
	}
	root.PersistentFlags().StringVar(&a.home, "home", "", "state dir holding the session (default $PAINEL_HOME or ~/.painel)")
	root.PersistentFlags().StringVar(&a.apiBase, "api", "", "API base URL (default $API_BASE_URL or http://localhost:8000)")

	root.AddCommand(
		loginCmd(a),
		registerCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		resourcesCmd(),
		listCmd(a),
		addCmd(a),
		updateCmd(a),
		insightsCmd(a),
	)
	return root
}

func (a *app) setup(logOut io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("read .env: %w", err)
	}
	cfg := config.LoadCLIConfig()
	if strings.TrimSpace(a.home) == "" {
		a.home = cfg.Home
	}
	if strings.TrimSpace(a.apiBase) == "" {
		a.apiBase = cfg.APIBaseURL
	}
	a.log = logger.NewWithWriter(logOut, "painel", logger.ParseLevel(cfg.LogLevel))

	api, err := apiclient.New(a.apiBase, apiclient.WithLogger(a.log))
	if err != nil {
		return err
	}
	a.api = api
	a.store = session.NewFileStore(a.home)
	a.auth = session.NewAuth(api, a.store, a.log)
	a.records = resource.NewController(api, a.log)
	a.views = insights.NewService(api, a.log)
	return nil
}

// requireSession returns the stored session or a hint to log in.
func (a *app) requireSession(ctx context.Context) (session.Session, error) {
	sess, err := a.auth.Require(ctx)
	if errors.Is(err, session.ErrNotLoggedIn) {
		return session.Session{}, errors.New("não autenticado: execute 'painel login' primeiro")
	}
	return sess, err
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), commandTimeout)
}

// noticeError prints successful notices and turns the others into errors.
func noticeError(cmd *cobra.Command, n resource.Notice) error {
	if n.Level == resource.LevelSuccess || n.Level == resource.LevelInfo {
		fmt.Fprintln(cmd.OutOrStdout(), n.Message)
		return nil
	}
	return errors.New(n.Message)
}
