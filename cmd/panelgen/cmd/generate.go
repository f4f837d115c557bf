package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang-loanpanel-service/cmd/panelgen/config"
	"golang-loanpanel-service/internal/ledger"
	"golang-loanpanel-service/internal/panel"
	"golang-loanpanel-service/internal/sink"
	"golang-loanpanel-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the generate command
var (
	variant      string
	startDate    string
	asOfDate     string
	workers      int
	eventsFile   string
	accountsFile string
	databaseURL  string
	panelTable   string
	csvExport    string
	showSummary  bool

	// Due-date rule flags
	graceDays     int
	minPayment    float64
	minRatio      float64
	legacyCutover string
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the weekly account panel",
	Long: `Generate computes one panel row per account per completed week, from the
product start date up to the most recently completed week (or --as-of).

Events are read from a CSV extract or a database table; the finished panel
replaces the destination table in a single transaction, and can additionally
be exported to CSV.

Examples:
  # CSV in, CSV out, with a console summary
  panelgen generate --variant installment --start-date 2021-01-01 \
    --events-file ledger.csv --csv-export panel.csv --summary

  # CSV in, database out
  panelgen generate --variant recurring-fee --start-date 2020-06-01 \
    --events-file ledger.csv --accounts-file accounts.csv \
    --database-url postgres://localhost/lending --table weekly_panel

  # Database in and out, pinned to a past week for a reproducible backfill
  panelgen generate --variant installment --start-date 2021-01-01 \
    --database-url postgres://localhost/lending --as-of 2024-03-10`,

	PreRunE: validateGenerateFlags,
	RunE:    runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	// Required flags
	generateCmd.Flags().StringVar(&variant, "variant", "", "product variant: installment, recurring-fee (required)")
	generateCmd.Flags().StringVar(&startDate, "start-date", "", "report start date YYYY-MM-DD (required)")

	// Period flags
	generateCmd.Flags().StringVar(&asOfDate, "as-of", "", "computation cutoff YYYY-MM-DD (default: most recent completed week)")
	generateCmd.Flags().IntVar(&workers, "workers", 4, "number of concurrent account workers")

	// Source flags
	generateCmd.Flags().StringVarP(&eventsFile, "events-file", "e", "", "path to ledger events CSV file")
	generateCmd.Flags().StringVarP(&accountsFile, "accounts-file", "a", "", "path to account registry CSV file (optional)")
	generateCmd.Flags().StringVar(&databaseURL, "database-url", "", "database connection URL (source and/or destination)")

	// Destination flags
	generateCmd.Flags().StringVarP(&panelTable, "table", "t", "weekly_panel", "destination panel table")
	generateCmd.Flags().StringVarP(&csvExport, "csv-export", "o", "", "also export the panel to a CSV file")
	generateCmd.Flags().BoolVar(&showSummary, "summary", false, "print a bucket distribution summary")

	// Due-date rule flags
	generateCmd.Flags().IntVar(&graceDays, "grace-days", 30, "payment window in days after a qualifying transaction")
	generateCmd.Flags().Float64Var(&minPayment, "minimum-payment", 67.50, "balance threshold for the minimum payment rule")
	generateCmd.Flags().Float64Var(&minRatio, "minimum-payment-ratio", 0.30, "fraction of balance that counts as a qualifying payment")
	generateCmd.Flags().StringVar(&legacyCutover, "legacy-cutover", "", "recurring-fee legacy cutover date YYYY-MM-DD")

	// Mark required flags
	generateCmd.MarkFlagRequired("variant")
	generateCmd.MarkFlagRequired("start-date")

	// Bind flags to viper
	viper.BindPFlag("variant", generateCmd.Flags().Lookup("variant"))
	viper.BindPFlag("start-date", generateCmd.Flags().Lookup("start-date"))
	viper.BindPFlag("as-of", generateCmd.Flags().Lookup("as-of"))
	viper.BindPFlag("workers", generateCmd.Flags().Lookup("workers"))
	viper.BindPFlag("events-file", generateCmd.Flags().Lookup("events-file"))
	viper.BindPFlag("accounts-file", generateCmd.Flags().Lookup("accounts-file"))
	viper.BindPFlag("database-url", generateCmd.Flags().Lookup("database-url"))
	viper.BindPFlag("table", generateCmd.Flags().Lookup("table"))
	viper.BindPFlag("csv-export", generateCmd.Flags().Lookup("csv-export"))
	viper.BindPFlag("summary", generateCmd.Flags().Lookup("summary"))
	viper.BindPFlag("grace-days", generateCmd.Flags().Lookup("grace-days"))
	viper.BindPFlag("minimum-payment", generateCmd.Flags().Lookup("minimum-payment"))
	viper.BindPFlag("minimum-payment-ratio", generateCmd.Flags().Lookup("minimum-payment-ratio"))
	viper.BindPFlag("legacy-cutover", generateCmd.Flags().Lookup("legacy-cutover"))
}

func validateGenerateFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	variant = viper.GetString("variant")
	startDate = viper.GetString("start-date")
	asOfDate = viper.GetString("as-of")
	workers = viper.GetInt("workers")
	eventsFile = viper.GetString("events-file")
	accountsFile = viper.GetString("accounts-file")
	databaseURL = viper.GetString("database-url")
	panelTable = viper.GetString("table")
	csvExport = viper.GetString("csv-export")
	showSummary = viper.GetBool("summary")
	graceDays = viper.GetInt("grace-days")
	minPayment = viper.GetFloat64("minimum-payment")
	minRatio = viper.GetFloat64("minimum-payment-ratio")
	legacyCutover = viper.GetString("legacy-cutover")

	// Validate required flags
	if variant == "" {
		return fmt.Errorf("variant is required")
	}
	if startDate == "" {
		return fmt.Errorf("start-date is required")
	}

	// Exactly one event source must be configured
	if eventsFile == "" && databaseURL == "" {
		return fmt.Errorf("either events-file or database-url is required")
	}

	// Validate source files
	if eventsFile != "" {
		if err := validateFileExists(eventsFile, "ledger events file"); err != nil {
			return err
		}
	}
	if accountsFile != "" {
		if err := validateFileExists(accountsFile, "account registry file"); err != nil {
			return err
		}
	}

	// Validate dates
	if _, err := time.Parse("2006-01-02", startDate); err != nil {
		return fmt.Errorf("invalid start date format. Use YYYY-MM-DD: %w", err)
	}
	if asOfDate != "" {
		asOf, err := time.Parse("2006-01-02", asOfDate)
		if err != nil {
			return fmt.Errorf("invalid as-of date format. Use YYYY-MM-DD: %w", err)
		}
		start, _ := time.Parse("2006-01-02", startDate)
		if start.After(asOf) {
			return fmt.Errorf("start date cannot be after as-of date")
		}
	}

	if workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}

	// Validate export directory exists if specified
	if csvExport != "" {
		dir := filepath.Dir(csvExport)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("export directory does not exist: %s", dir)
			}
		}
	}

	// A database destination needs a URL to write to
	if databaseURL == "" && csvExport == "" && !showSummary {
		return fmt.Errorf("no destination configured: set database-url, csv-export or summary")
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	errorHandler := NewCLIErrorHandler()

	if verbose {
		if debugLogger, err := logger.NewLogger(logger.DebugConfig()); err == nil {
			logger.SetGlobalLogger(debugLogger)
		}
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting panel generation...\n")
		fmt.Fprintf(os.Stderr, "Variant: %s\n", variant)
		fmt.Fprintf(os.Stderr, "Start date: %s\n", startDate)
		if asOfDate != "" {
			fmt.Fprintf(os.Stderr, "As-of date: %s\n", asOfDate)
		}
	}

	// Create configurations
	dueDateConfig, err := config.CreateDueDateConfig(variant, graceDays, minPayment, minRatio, legacyCutover)
	if err != nil {
		return fmt.Errorf("failed to create due-date config: %w", err)
	}

	assemblerConfig, err := config.CreateAssemblerConfig(startDate, asOfDate, workers, dueDateConfig)
	if err != nil {
		return fmt.Errorf("failed to create assembler config: %w", err)
	}

	// Wire the event and account sources
	events, accounts, closeSource, err := buildSources(ctx)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer closeSource()

	// Wire the panel destination
	panelSink, closeSink, err := buildSink(ctx)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}
	defer closeSink()

	assembler, err := panel.NewAssembler(assemblerConfig, events, accounts, panelSink)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	result, err := assembler.Run(ctx)
	if err != nil {
		os.Exit(errorHandler.HandleError(err))
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nPanel generation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Computed %d rows across %d accounts and %d periods.\n",
			result.Rows, result.Accounts, result.Periods)
		fmt.Fprintf(os.Stderr, "As-of week: %s\n", result.AsOf.Format("2006-01-02"))
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.Elapsed)
	}

	return nil
}

// buildSources wires the ledger sources from the CLI flags, wrapping them
// with retry so a transient source outage does not abort the run.
func buildSources(ctx context.Context) (ledger.EventSource, ledger.AccountSource, func(), error) {
	closeFunc := func() {}

	if eventsFile != "" {
		csvConfig, err := config.CreateCSVSourceConfig(eventsFile, accountsFile)
		if err != nil {
			return nil, nil, closeFunc, err
		}

		source, err := ledger.NewCSVSource(csvConfig)
		if err != nil {
			return nil, nil, closeFunc, err
		}

		retrying := ledger.NewRetryingSource(source, source, ledger.DefaultRetryConfig())
		return retrying, retrying, closeFunc, nil
	}

	pgConfig := config.CreatePostgresSourceConfig("", "")
	source, err := ledger.NewPostgresSource(ctx, databaseURL, pgConfig)
	if err != nil {
		return nil, nil, closeFunc, err
	}

	retrying := ledger.NewRetryingSource(source, source, ledger.DefaultRetryConfig())
	return retrying, retrying, source.Close, nil
}

// buildSink wires the panel destinations from the CLI flags. Multiple
// destinations fan out; the database write is wrapped with retry because a
// failed replace leaves the previous panel untouched.
func buildSink(ctx context.Context) (sink.PanelSink, func(), error) {
	var sinks []sink.PanelSink
	closeFunc := func() {}

	if databaseURL != "" {
		pgSink, err := sink.NewPostgresSink(ctx, databaseURL, panelTable)
		if err != nil {
			return nil, closeFunc, err
		}
		closeFunc = pgSink.Close
		sinks = append(sinks, sink.NewRetryingSink(pgSink, sink.DefaultRetryConfig()))
	}

	if csvExport != "" {
		csvSink, err := sink.NewCSVSink(csvExport)
		if err != nil {
			return nil, closeFunc, err
		}
		sinks = append(sinks, csvSink)
	}

	if showSummary {
		sinks = append(sinks, sink.NewSummarySink(os.Stdout))
	}

	if len(sinks) == 1 {
		return sinks[0], closeFunc, nil
	}

	return sink.NewMultiSink(sinks...), closeFunc, nil
}
