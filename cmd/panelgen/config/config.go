package config

import (
	"fmt"
	"time"

	"golang-loanpanel-service/internal/aggregate"
	"golang-loanpanel-service/internal/duedate"
	"golang-loanpanel-service/internal/ledger"
	"golang-loanpanel-service/internal/panel"

	"github.com/shopspring/decimal"
)

// CreateDueDateConfig creates a due-date engine configuration from CLI values
func CreateDueDateConfig(variant string, graceDays int, minPayment, minRatio float64, legacyCutover string) (*duedate.Config, error) {
	config := duedate.DefaultConfig(duedate.Variant(variant))

	if graceDays > 0 {
		config.GraceDays = graceDays
	}
	if minPayment > 0 {
		config.MinimumPayment = decimal.NewFromFloat(minPayment)
	}
	if minRatio > 0 {
		config.MinimumPaymentRatio = decimal.NewFromFloat(minRatio)
	}
	if legacyCutover != "" {
		t, err := time.Parse("2006-01-02", legacyCutover)
		if err != nil {
			return nil, fmt.Errorf("invalid legacy cutover date: %w", err)
		}
		config.LegacyCutover = t
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// CreateAssemblerConfig creates the panel assembler configuration
func CreateAssemblerConfig(startDate, asOf string, workers int, dueDate *duedate.Config) (*panel.Config, error) {
	start, err := time.Parse("2006-01-02", startDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start date: %w", err)
	}

	config := &panel.Config{
		StartDate:   start,
		Workers:     workers,
		DueDate:     dueDate,
		Aggregation: aggregate.DefaultConfig(),
	}

	if asOf != "" {
		t, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return nil, fmt.Errorf("invalid as-of date: %w", err)
		}
		config.AsOf = t
	}

	return config, nil
}

// CreateCSVSourceConfig creates a ledger CSV source configuration with the
// column aliases common across raw extracts
func CreateCSVSourceConfig(eventsFile, accountsFile string) (*ledger.CSVConfig, error) {
	config := ledger.DefaultCSVConfig(eventsFile, accountsFile)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// CreatePostgresSourceConfig creates a ledger database source configuration
func CreatePostgresSourceConfig(eventsTable, accountsTable string) *ledger.PostgresConfig {
	config := ledger.DefaultPostgresConfig()

	if eventsTable != "" {
		config.EventsTable = eventsTable
	}
	if accountsTable != "" {
		config.AccountsTable = accountsTable
	}

	return config
}
