package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobsync/internal/config"
	"github.com/amishk599/jobsync/internal/store"
)

var showDiscovered bool

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List configured sources and companies",
	Long:  "Reads the config and prints a table of every source with its companies or tags. With --discovered, lists companies confirmed by discovery instead.",
	RunE:  runCompanies,
}

var companiesAddCmd = &cobra.Command{
	Use:   "add <slug>...",
	Short: "Queue company names for discovery",
	Long:  "Adds candidates to the discovery queue as pending. Already-queued slugs are left untouched.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCompaniesAdd,
}

func init() {
	companiesCmd.Flags().BoolVar(&showDiscovered, "discovered", false, "list companies confirmed by discovery")
	companiesCmd.AddCommand(companiesAddCmd)
	rootCmd.AddCommand(companiesCmd)
}

func runCompanies(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if showDiscovered {
		return listDiscovered(cmd.Context(), cfg)
	}

	fmt.Printf("%-12s %-11s %-9s %s\n", "Source", "Kind", "Status", "Companies / tags")
	fmt.Println(strings.Repeat("─", 72))

	enabled := 0
	for _, name := range append(slices.Clone(config.ATSSources), config.AggregatorSources...) {
		sc, ok := cfg.Sources[name]
		status := "disabled"
		if ok && sc.Enabled {
			status = "enabled"
			enabled++
		}
		kind := "aggregator"
		list := sc.Tags
		if slices.Contains(config.ATSSources, name) {
			kind = "ats"
			list = sc.Companies
		}
		fmt.Printf("%-12s %-11s %-9s %s\n", name, kind, status, summarize(list, 6))
	}

	fmt.Printf("\nTotal: %d sources enabled\n", enabled)
	return nil
}

func summarize(items []string, n int) string {
	if len(items) == 0 {
		return "-"
	}
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s, ... (%d total)", strings.Join(items[:n], ", "), len(items))
}

func listDiscovered(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	companies, err := st.ListDiscoveredCompanies(ctx, "")
	if err != nil {
		return err
	}

	fmt.Printf("%-25s %-12s %6s %6s\n", "Company", "Source", "Jobs", "Remote")
	fmt.Println(strings.Repeat("─", 52))
	for _, c := range companies {
		fmt.Printf("%-25s %-12s %6d %6d\n", c.Slug, c.Source, c.JobCount, c.RemoteJobCount)
	}
	fmt.Printf("\nTotal: %d discovered companies\n", len(companies))
	return nil
}

func runCompaniesAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.Open(cmd.Context(), cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	added, err := st.AddPotentialCompanies(cmd.Context(), args)
	if err != nil {
		return err
	}
	fmt.Printf("queued %d of %d candidates for discovery\n", added, len(args))
	return nil
}
