package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"CatalogScanner/internal/app"
	"CatalogScanner/internal/config"
	"CatalogScanner/internal/logging"
	"CatalogScanner/internal/scanner"
)

var (
	configFile string
	logLevel   string

	page       int
	year       string
	category   string
	maxResults int
	format     string
)

var rootCmd = &cobra.Command{
	Use:           "catalogscanner",
	Short:         "Turns catalog listing pages into normalized item records",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var browseCmd = &cobra.Command{
	Use:   "browse [site]",
	Short: "Fetches one listing page of a configured site",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		site := config.DefaultSiteID
		if len(args) > 0 {
			site = args[0]
		}

		application, err := newApplication()
		if err != nil {
			return err
		}

		params := map[string]string{}
		if cmd.Flags().Changed("page") {
			params[scanner.ParamPage] = strconv.Itoa(page)
		}
		if year != "" {
			params[scanner.ParamYear] = year
		}
		if category != "" {
			params[scanner.ParamCategory] = category
		}
		if cmd.Flags().Changed("max") {
			params[scanner.ParamMaxResults] = strconv.Itoa(maxResults)
		}

		return application.Browse(cmd.Context(), site, params, format, cmd.OutOrStdout())
	},
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Lists the configured sites and their parameters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApplication()
		if err != nil {
			return err
		}
		return application.Modules(format, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a YAML config file (default $CATALOG_SCANNER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format: table or json")

	browseCmd.Flags().IntVar(&page, "page", 1, "1-based page number")
	browseCmd.Flags().StringVar(&year, "year", "", "Restrict to a 4-digit air year")
	browseCmd.Flags().StringVar(&category, "category", "", "Sort order / chart, or mixed")
	browseCmd.Flags().IntVar(&maxResults, "max", 0, "Maximum number of items, 0 for no limit")

	rootCmd.AddCommand(browseCmd, modulesCmd)
}

func newApplication() (*app.Application, error) {
	cfg := config.Load()
	if configFile != "" {
		loaded, err := config.LoadFrom(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	return app.New(cfg, logging.New(cfg.Logging.Level))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
