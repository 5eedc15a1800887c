package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type LoginOptions struct {
	*RootOptions
	Email    string
	Password string
}

func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and merge your anonymous cart",
		Long: `Sign in with email and password.

Anything already in your local cart is added to your account's cart.

Example:
  shopctl login --email user@example.com --password user123`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd, func(s *session) error {
				user, err := s.app.Login(s.ctx, opts.Email, opts.Password)
				if err != nil {
					return WrapExitError(ExitFailure, "login failed", err)
				}
				return s.out.Emit(user, func(w io.Writer) {
					fmt.Fprintf(w, "Logged in as %s <%s>\n", user.Name, user.Email)
					fmt.Fprintf(w, "Cart: %d item(s), %.2f\n", s.app.Cart.Count(), s.app.Cart.Subtotal())
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.Password, "password", "", "account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				if err := s.app.Logout(); err != nil {
					return WrapExitError(ExitCommandError, "logout", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
				return nil
			})
		},
	}
}

func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.run(cmd, func(s *session) error {
				if err := s.requireLogin(); err != nil {
					return err
				}
				user, err := s.app.API.Me(s.ctx)
				if err != nil {
					return WrapExitError(ExitFailure, "fetch profile", err)
				}
				return s.out.Emit(user, func(w io.Writer) {
					fmt.Fprintf(w, "%s <%s> (%s)\n", user.Name, user.Email, user.Role)
				})
			})
		},
	}
}
