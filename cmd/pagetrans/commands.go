package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/dasmlab/pagetrans/pkg/config"
	"github.com/dasmlab/pagetrans/pkg/content"
	"github.com/dasmlab/pagetrans/pkg/fetch"
	"github.com/dasmlab/pagetrans/pkg/service"
	"github.com/dasmlab/pagetrans/pkg/translate"
)

func newTranslateCmd(opts *cliOptions) *cobra.Command {
	var (
		providerID string
		pageURL    string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "translate [file|-]",
		Short: "Translate the main content of a page",
		Long:  `Translate the main content region of an HTML file, stdin or a fetched URL and write the whole page.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := config.LoadProviders(opts.providersFile)
			if err != nil {
				return fmt.Errorf("failed to load providers: %w", err)
			}
			cfg, ok := registry.Default()
			if providerID != "" {
				cfg, ok = registry.Lookup(providerID)
			}
			if !ok {
				return fmt.Errorf("provider %q is not defined in %s", providerID, opts.providersFile)
			}

			source, err := loadPage(cmd, opts, args, pageURL)
			if err != nil {
				return err
			}

			pipeline := service.NewPageTranslator(translate.NewClient(nil, opts.logger), opts.logger)
			rendered, outcome, err := pipeline.TranslateHTML(commandContext(cmd), source, cfg)
			if err != nil {
				return err
			}

			opts.logger.WithField("mode", outcome.Mode.String()).Info("Page translated")
			if outPath == "" || outPath == "-" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
				return err
			}
			if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outPath, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Translated <%s> (%s) with %s -> %s\n",
				outcome.RegionTag, outcome.Mode, cfg.DisplayName(), outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerID, "provider", "p", "", "Provider id (defaults to the registry default)")
	cmd.Flags().StringVar(&pageURL, "url", "", "Fetch the page from this URL instead of a file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (stdout when empty)")
	return cmd
}

func newLocateCmd(opts *cliOptions) *cobra.Command {
	var (
		pageURL  string
		showHTML bool
	)

	cmd := &cobra.Command{
		Use:   "locate [file|-]",
		Short: "Show which element would be translated",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := loadPage(cmd, opts, args, pageURL)
			if err != nil {
				return err
			}
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
			if err != nil {
				return fmt.Errorf("failed to parse page: %w", err)
			}

			region, err := content.NewLocator(opts.logger).Locate(doc)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tag:         %s\n", region.Tag())
			fmt.Fprintf(out, "Text length: %d\n", region.TextLength())
			fmt.Fprintf(out, "Descendants: %d\n", region.DescendantCount())
			if showHTML {
				markup, err := region.OuterHTML()
				if err != nil {
					return err
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, markup)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pageURL, "url", "", "Fetch the page from this URL instead of a file")
	cmd.Flags().BoolVar(&showHTML, "html", false, "Print the outer HTML of the region")
	return cmd
}

func newProvidersCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List configured translation providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := config.LoadProviders(opts.providersFile)
			if err != nil {
				return fmt.Errorf("failed to load providers: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tTYPE\tMODEL\tDEFAULT")
			for _, p := range registry.List() {
				def := ""
				if p.ID == registry.DefaultID() {
					def = "*"
				}
				model := p.Model
				if model == "" {
					model = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.DisplayName(), p.Kind, model, def)
			}
			return tw.Flush()
		},
	}
}

// loadPage reads the page from the file argument or fetches pageURL.
func loadPage(cmd *cobra.Command, opts *cliOptions, args []string, pageURL string) (string, error) {
	switch {
	case pageURL != "" && len(args) > 0:
		return "", errors.New("pass either a file or --url, not both")
	case pageURL != "":
		page, err := fetch.New(opts.settings.FetchOptions(), opts.logger).Fetch(commandContext(cmd), pageURL)
		if err != nil {
			return "", err
		}
		return page.HTML, nil
	case len(args) == 1:
		return readSource(cmd, args[0])
	default:
		return "", errors.New("a file argument, - or --url is required")
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
