package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mmcdole/arsview/internal/config"
	"github.com/mmcdole/arsview/internal/domain"
	"github.com/mmcdole/arsview/internal/service"
	"github.com/mmcdole/arsview/internal/tui"
)

const defaultRecentLimit = 20

// newRootCmd creates the root command. Run without a subcommand it opens
// the interactive browser and asks for a query.
func newRootCmd(a *app, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "arsview",
		Short: "Browse results from a multi-agent reasoning aggregator",
		Long: `arsview submits a question to an ARS-style aggregator, follows the agents
as they answer and shows the merged results as they arrive.

Quick start:
  arsview query "what drugs may treat chronic myeloid leukemia?"
  arsview open <query-id>
  arsview recent`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(version)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			if !a.interactive() {
				return fmt.Errorf("a query is required when output is not a terminal")
			}
			return runTUI(a.model(svc))
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default ~/.config/arsview/config.yaml)")
	cmd.PersistentFlags().StringVar(&a.serverURL, "server", "", "aggregator base URL, overrides server.url")
	cmd.PersistentFlags().BoolVarP(&a.debug, "debug", "D", false, "enable debug logging")
	cmd.PersistentFlags().BoolVar(&a.plain, "plain", false, "print progress lines instead of the interactive view")

	cmd.SetVersionTemplate("arsview {{.Version}}\n")

	cmd.AddCommand(newQueryCmd(a))
	cmd.AddCommand(newOpenCmd(a))
	cmd.AddCommand(newRecentCmd(a))
	cmd.AddCommand(newCacheCmd(a))
	cmd.AddCommand(newLinkCmd(a))

	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <text>",
		Short: "Submit a new query and follow its results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			text := queryText(args)

			if a.interactive() {
				return runTUI(a.model(svc).WithSubmit(text))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			q, err := submit(ctx, svc, text)
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout(), svc).Run(ctx, q, nil)
		},
	}
}

func newOpenCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "open <query-id>",
		Short: "Follow an existing query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}

			if a.interactive() {
				return runTUI(a.model(svc).WithOpen(args[0]))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			q, cached, err := svc.Open(ctx, args[0])
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout(), svc).Run(ctx, q, cached)
		},
	}
}

func newRecentCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently submitted queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}

			queries := svc.Recent(limit)
			if len(queries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no queries yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSUBMITTED\tSTATUS\tQUERY")
			for _, q := range queries {
				submitted := "-"
				if !q.SubmittedAt.IsZero() {
					submitted = q.SubmittedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", q.ID, submitted, q.Status, q.Text)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", defaultRecentLimit, "maximum number of queries to list")
	return cmd
}

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local result cache",
	}

	var all bool
	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached queries and results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if err := config.ClearCache(a.cfg.Cache.Dir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "cache cleared for all aggregators")
				return nil
			}

			svc, err := a.services()
			if err != nil {
				return err
			}
			svc.ClearCache()
			fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return nil
		},
	}
	clearCmd.Flags().BoolVar(&all, "all", false, "clear the cache of every aggregator, not just the configured one")

	forget := &cobra.Command{
		Use:   "forget <query-id>",
		Short: "Remove one query from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services()
			if err != nil {
				return err
			}
			svc.Forget(args[0])
			return nil
		},
	}

	cmd.AddCommand(clearCmd, forget)
	return cmd
}

func newLinkCmd(a *app) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "link <result-id>",
		Short: "Open the page for a result identifier",
		Example: `  arsview link CHEBI:45783
  arsview link --print MONDO:0011996`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l := a.launcher()
			if printOnly {
				link, err := l.LinkFor(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), link)
				return nil
			}

			link, err := l.OpenResult(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "opened", link)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&printOnly, "print", "p", false, "print the link instead of opening it")
	return cmd
}

// submit sends a query with a bounded wait for the aggregator to accept it
func submit(ctx context.Context, svc *service.QueryService, text string) (domain.Query, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return svc.Submit(ctx, text)
}

func runTUI(model tui.Model) error {
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
