// Command pagetrans translates the main content of local HTML files or web
// pages from the command line.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dasmlab/pagetrans/pkg/config"
)

// Version is set at build time via -ldflags "-X main.Version=X.Y.Z"
var Version = "0.0.0-dev"

type cliOptions struct {
	providersFile string
	verbose       bool

	settings config.Settings
	logger   *logrus.Logger
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:   "pagetrans",
		Short: "Translate the main content of HTML pages with an LLM provider",
		Long: `pagetrans finds the main content region of an HTML page, sends it to a
configured translation provider and puts the translated markup back in place.

Examples:
  pagetrans translate article.html --provider openai -o article.zh.html
  pagetrans translate --url https://example.com/post
  pagetrans locate article.html
  pagetrans providers

Providers are read from providers.yaml, or from the file named by
--providers or PAGETRANS_PROVIDERS_FILE.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.FromEnv()
			if err != nil {
				return err
			}
			opts.settings = settings
			if !cmd.Flags().Changed("providers") {
				opts.providersFile = settings.ProvidersFile
			}

			opts.logger = logrus.New()
			opts.logger.SetOutput(cmd.ErrOrStderr())
			opts.logger.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: time.RFC3339,
			})
			opts.logger.SetLevel(logrus.WarnLevel)
			if opts.verbose {
				opts.logger.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.providersFile, "providers", "providers.yaml", "Path to the provider registry YAML file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")

	root.AddCommand(newTranslateCmd(opts))
	root.AddCommand(newLocateCmd(opts))
	root.AddCommand(newProvidersCmd(opts))

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// readSource returns the page markup from a file argument, "-" for stdin.
func readSource(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}
