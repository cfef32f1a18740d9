package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	apiclient "github.com/Juauvitorsm/painel-empresas/pkg/api/client"
	"github.com/Juauvitorsm/painel-empresas/pkg/jwt"
	"github.com/Juauvitorsm/painel-empresas/pkg/session"
)

func loginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readPassword(cmd, password, "Senha: ")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if _, err := a.auth.Login(ctx, email, secret); err != nil {
				return loginError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Login realizado com sucesso!")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginError(err error) error {
	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		return errors.New("informe e-mail e senha")
	case apiclient.IsConnectionError(err):
		return errors.New("erro de conexão. Verifique se a sua API está rodando")
	default:
		return fmt.Errorf("credenciais inválidas. Verifique seu e-mail e senha (%w)", err)
	}
}

func registerCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readPassword(cmd, password, "Senha para cadastro: ")
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(cmd)
			defer cancel()
			if err := a.auth.Register(ctx, email, secret); err != nil {
				if f, ok := apiclient.AsFailure(err); ok && f.Kind == apiclient.KindHTTP {
					return fmt.Errorf("erro ao cadastrar: %s", f.Detail())
				}
				return loginError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Usuário cadastrado com sucesso! Agora você pode fazer o login.")
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sessão encerrada.")
			return nil
		},
	}
}

func whoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user and token expiry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.requireSession(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:    %s\n", sess.UserEmail)
			fmt.Fprintf(out, "api:     %s\n", a.api.BaseURL())
			fmt.Fprintf(out, "session: %s\n", a.store.Path())
			if subject, err := jwt.Subject(sess.AccessToken); err == nil && subject != "" {
				fmt.Fprintf(out, "subject: %s\n", subject)
			}
			exp, err := jwt.ExpiresAt(sess.AccessToken)
			switch {
			case err == nil:
				state := "valid"
				if time.Now().After(exp) {
					state = "expired"
				}
				fmt.Fprintf(out, "expires: %s (%s)\n", exp.Local().Format(time.RFC3339), state)
			case errors.Is(err, jwt.ErrNoExpiry):
				fmt.Fprintln(out, "expires: never")
			default:
				fmt.Fprintln(out, "expires: unknown")
			}
			return nil
		},
	}
}

// readPassword returns flagValue when set, prompts on a terminal, and otherwise
// reads one line from stdin.
func readPassword(cmd *cobra.Command, flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(secret), nil
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
