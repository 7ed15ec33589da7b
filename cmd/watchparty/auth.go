package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mmcdole/watchparty/internal/domain"
)

func newLoginCmd(c *cli) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and merge your account's watch state into this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireAuth(c); err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			email, err := promptEmail(cmd, in, email)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			password, err := readPassword(cmd.InOrStdin(), in)
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}

			sess, err := c.app.auth.SignIn(cmd.Context(), email, password)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					return fmt.Errorf("sign in failed: %w", err)
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sessionName(sess))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")

	return cmd
}

func requireAuth(c *cli) error {
	if c.app.cfg.AuthURL() == "" {
		return errors.New("auth is not configured: set remote.url or auth.url")
	}
	return nil
}

// promptEmail returns email, or reads one from in when it is empty
func promptEmail(cmd *cobra.Command, in *bufio.Reader, email string) (string, error) {
	if email == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Email: ")
		line, err := in.ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	return email, nil
}

// promptNewPassword asks twice and checks both entries match
func promptNewPassword(cmd *cobra.Command, in *bufio.Reader, label string) (string, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s: ", label)
	password, err := readPassword(cmd.InOrStdin(), in)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if password == "" {
		return "", errors.New("password cannot be empty")
	}

	fmt.Fprint(cmd.OutOrStdout(), "Confirm password: ")
	confirm, err := readPassword(cmd.InOrStdin(), in)
	fmt.Fprintln(cmd.OutOrStdout())
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if confirm != password {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}

// readPassword reads without echo from a terminal, or a line from anything else
func readPassword(raw io.Reader, buffered *bufio.Reader) (string, error) {
	if f, ok := raw.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := buffered.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; the watch state stays on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.app.engine.Session().IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if err := c.app.auth.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess := c.app.engine.Session()
			if !sess.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}

			name := sessionName(sess)
			if c.app.profiles != nil {
				profile, err := c.app.profiles.FetchProfile(cmd.Context(), sess.UserID)
				switch {
				case err == nil && profile.DisplayName != "":
					name = fmt.Sprintf("%s (%s)", profile.DisplayName, name)
				case err != nil && !errors.Is(err, domain.ErrNotFound):
					c.app.logger.Warn("failed to fetch profile", "userID", sess.UserID, "error", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", name)
			return nil
		},
	}
}

func sessionName(s domain.Session) string {
	if s.Email != "" {
		return s.Email
	}
	return s.UserID
}

func newSignupCmd(c *cli) *cobra.Command {
	var email, name string

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in when the service allows it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireAuth(c); err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			email, err := promptEmail(cmd, in, email)
			if err != nil {
				return err
			}
			password, err := promptNewPassword(cmd, in, "Password")
			if err != nil {
				return err
			}

			sess, err := c.app.auth.SignUp(cmd.Context(), email, password, name)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					return fmt.Errorf("sign up failed: %w", err)
				}
				return err
			}

			if !sess.IsAuthenticated() {
				fmt.Fprintln(cmd.OutOrStdout(), "Check your email for the confirmation link, then run login")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", sessionName(sess))
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")
	cmd.Flags().StringVar(&name, "name", "", "display name for your profile")

	return cmd
}

func newPasswdCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd",
		Short: "Change the signed-in account's password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !c.app.engine.Session().IsAuthenticated() {
				return errors.New("not signed in: run login first")
			}

			in := bufio.NewReader(cmd.InOrStdin())
			password, err := promptNewPassword(cmd, in, "New password")
			if err != nil {
				return err
			}

			if err := c.app.auth.UpdatePassword(cmd.Context(), password); err != nil {
				if errors.Is(err, domain.ErrUnauthorized) {
					return fmt.Errorf("password change failed: %w", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated")
			return nil
		},
	}
}

func newResetPasswordCmd(c *cli) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireAuth(c); err != nil {
				return err
			}

			email, err := promptEmail(cmd, bufio.NewReader(cmd.InOrStdin()), email)
			if err != nil {
				return err
			}
			if err := c.app.auth.ResetPassword(cmd.Context(), email); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password reset link sent to %s\n", email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email (prompted when empty)")

	return cmd
}

func newProfileCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit your account profile",
	}
	cmd.AddCommand(newProfileSetNameCmd(c))
	return cmd
}

func newProfileSetNameCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "set-name <name>",
		Short: "Change your display name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess := c.app.engine.Session()
			if !sess.IsAuthenticated() {
				return errors.New("not signed in: run login first")
			}
			if c.app.profiles == nil {
				return fmt.Errorf("the %s backend has no profiles", c.app.cfg.Remote.Backend)
			}

			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("name cannot be empty")
			}
			if err := c.app.profiles.UpdateProfile(cmd.Context(), sess.UserID, domain.ProfileUpdate{DisplayName: name}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Display name set to %s\n", name)
			return nil
		},
	}
}
