// Package cli implements the shopctl command line client.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/logging"
	"storefront/internal/notify"
	"storefront/internal/storefront"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	APIURL    string
	StatePath string
	Timeout   time.Duration

	logLevel  string
	logFormat string
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "shopctl",
		Short:         "Storefront client",
		Long:          "Browse products, manage your cart, place orders and chat with other shoppers or support.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.applyConfig(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", "", "storefront API base URL (env SHOP_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.StatePath, "state", "", "local state database (env SHOP_STATE)")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 0, "request timeout (env SHOP_TIMEOUT)")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewProductsCommand(opts))
	cmd.AddCommand(NewCartCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewOrdersCommand(opts))
	cmd.AddCommand(NewDiscountsCommand(opts))
	cmd.AddCommand(NewChatCommand(opts))

	return cmd
}

// applyConfig fills flags the user did not set from the environment.
func (o *RootOptions) applyConfig(cmd *cobra.Command) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return WrapExitError(ExitCommandError, "load configuration", err)
	}
	flags := cmd.Flags()
	if !flags.Changed("api") {
		o.APIURL = cfg.APIURL
	}
	if !flags.Changed("state") {
		o.StatePath = cfg.StatePath
	}
	if !flags.Changed("timeout") {
		o.Timeout = cfg.Timeout
	}
	o.logLevel, o.logFormat = cfg.LogLevel, cfg.LogFormat
	if o.Verbose {
		o.logLevel = "debug"
	}
	return nil
}

// session is what a command runs against.
type session struct {
	ctx context.Context
	app *storefront.App
	out *OutputFormatter
	log logrus.FieldLogger
}

// run opens the local state, runs fn and closes the state again.
func (o *RootOptions) run(cmd *cobra.Command, fn func(s *session) error) error {
	log := logging.NewWithOutput(cmd.ErrOrStderr(), o.logLevel, o.logFormat)
	app, err := storefront.Open(storefront.Options{
		BaseURL:   o.APIURL,
		Timeout:   o.Timeout,
		StatePath: o.StatePath,
		Notifier:  notify.Printer{W: cmd.ErrOrStderr()},
		Logger:    log,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "open local state", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.WithError(err).Warn("close local state")
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(&session{
		ctx: ctx,
		app: app,
		out: &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: o.Verbose},
		log: log,
	})
}

// requireLogin fails unless a user is logged in.
func (s *session) requireLogin() error {
	if !s.app.Session.Authenticated() {
		return NewExitError(ExitFailure, "not logged in: run shopctl login")
	}
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
