package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang-loanpanel-service/internal/models"
	"golang-loanpanel-service/pkg/errors"
	"golang-loanpanel-service/pkg/logger"
)

// CSVConfig configures the CSV-backed sources. Ledger extracts come from
// different warehouses with different column headings, so every column has a
// canonical name plus a set of accepted aliases.
type CSVConfig struct {
	EventsPath   string
	AccountsPath string

	HasHeader bool
	Delimiter rune

	// ColumnAliases maps lowercased header names onto canonical columns
	ColumnAliases map[string]string
}

// DefaultCSVConfig returns the default CSV source configuration
func DefaultCSVConfig(eventsPath, accountsPath string) *CSVConfig {
	return &CSVConfig{
		EventsPath:   eventsPath,
		AccountsPath: accountsPath,
		HasHeader:    true,
		Delimiter:    ',',
		ColumnAliases: map[string]string{
			"id":             "eventID",
			"event_id":       "eventID",
			"transaction_id": "eventID",
			"transactionid":  "eventID",
			"account":        "accountID",
			"account_id":     "accountID",
			"useraccount":    "accountID",
			"user_reference": "userReference",
			"user_ref":       "userReference",
			"transaction_type": "type",
			"ttype":            "type",
			"amt":              "amount",
			"value":            "amount",
			"posted_at":        "postedAt",
			"postedat":         "postedAt",
			"timestamp":        "postedAt",
			"date":             "postedAt",
			"account_identifier": "accountID",
			"loan_type":          "loanType",
			"status_updated_at":  "statusUpdatedAt",
			"updated_at":         "statusUpdatedAt",
			"open_date":          "openedAt",
			"opened_at":          "openedAt",
			"created_at":         "openedAt",
			"credit_limit":       "creditLimit",
			"cblimit":            "creditLimit",
		},
	}
}

// Validate validates the CSV source configuration
func (c *CSVConfig) Validate() error {
	if strings.TrimSpace(c.EventsPath) == "" {
		return fmt.Errorf("events file path cannot be empty")
	}
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be empty")
	}
	return nil
}

// CSVSource reads ledger events and account metadata from CSV extracts.
// It implements both EventSource and AccountSource; the accounts file is
// optional.
type CSVSource struct {
	config *CSVConfig
	logger logger.Logger
}

// NewCSVSource creates a CSV-backed source
func NewCSVSource(config *CSVConfig) (*CSVSource, error) {
	if config == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig,
			"CSV source configuration is required", nil)
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig,
			"invalid CSV source configuration", err)
	}

	return &CSVSource{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("csv_source"),
	}, nil
}

// Events implements EventSource
func (s *CSVSource) Events(ctx context.Context) (map[string][]*models.Event, error) {
	s.logger.WithField("file", s.config.EventsPath).Info("Reading ledger events")

	grouped := make(map[string][]*models.Event)
	count := 0

	err := s.readFile(ctx, s.config.EventsPath,
		[]string{"eventID", "accountID", "type", "amount", "postedAt"},
		func(line int, get func(string) string) error {
			amount, err := models.ParseAmount(get("amount"))
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			evType, err := models.ParseEventType(get("type"))
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			postedAt, err := models.ParseDate(get("postedAt"))
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			event := models.NewEvent(get("eventID"), get("accountID"),
				get("userReference"), evType, amount, postedAt)
			if err := event.Validate(); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			grouped[event.AccountID] = append(grouped[event.AccountID], event)
			count++
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"events":   count,
		"accounts": len(grouped),
	}).Info("Ledger events loaded")

	return grouped, nil
}

// Accounts implements AccountSource
func (s *CSVSource) Accounts(ctx context.Context) (map[string]*models.AccountRecord, error) {
	accounts := make(map[string]*models.AccountRecord)
	if strings.TrimSpace(s.config.AccountsPath) == "" {
		return accounts, nil
	}

	s.logger.WithField("file", s.config.AccountsPath).Info("Reading account metadata")

	err := s.readFile(ctx, s.config.AccountsPath,
		[]string{"accountID", "status", "openedAt"},
		func(line int, get func(string) string) error {
			openedAt, err := models.ParseDate(get("openedAt"))
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			record := &models.AccountRecord{
				AccountID:     get("accountID"),
				UserReference: get("userReference"),
				LoanType:      get("loanType"),
				Status:        models.AccountStatus(strings.ToLower(strings.TrimSpace(get("status")))),
				OpenedAt:      openedAt,
			}

			if raw := get("statusUpdatedAt"); raw != "" {
				if record.StatusUpdatedAt, err = models.ParseDate(raw); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
			}

			if raw := get("creditLimit"); raw != "" {
				if record.CreditLimit, err = models.ParseAmount(raw); err != nil {
					return fmt.Errorf("line %d: %w", line, err)
				}
			}

			if err := record.Validate(); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}

			accounts[record.AccountID] = record
			return nil
		})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("accounts", len(accounts)).Info("Account metadata loaded")
	return accounts, nil
}

// readFile streams a CSV file row by row, resolving headers through the
// alias table and handing each record to consume via a column getter.
// Malformed rows abort the read: silently dropping ledger entries would
// corrupt every downstream balance.
func (s *CSVSource) readFile(ctx context.Context, path string, required []string,
	consume func(line int, get func(string) string) error) error {

	file, err := os.Open(path)
	if err != nil {
		return errors.SourceError(errors.CodeSourceRead, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = s.config.Delimiter
	reader.TrimLeadingSpace = true

	columns := make(map[string]int)
	line := 0

	if s.config.HasHeader {
		header, err := reader.Read()
		if err != nil {
			return errors.SourceError(errors.CodeSourceRead, path, err)
		}
		line++

		for i, name := range header {
			canonical := s.canonicalColumn(name)
			columns[canonical] = i
		}

		for _, col := range required {
			if _, ok := columns[col]; !ok {
				return errors.SourceError(errors.CodeMissingColumn, path,
					fmt.Errorf("column %q not found in header %v", col, header))
			}
		}
	} else {
		// Headerless extracts use the canonical column order.
		for i, col := range required {
			columns[col] = i
		}
	}

	for {
		select {
		case <-ctx.Done():
			return errors.SourceError(errors.CodeSourceRead, path, ctx.Err())
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.SourceError(errors.CodeSourceRead, path, err)
		}
		line++

		get := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		if err := consume(line, get); err != nil {
			return errors.SourceError(errors.CodeInvalidRecord, path, err)
		}
	}
}

// canonicalColumn maps a raw header name onto its canonical column name
func (s *CSVSource) canonicalColumn(name string) string {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := s.config.ColumnAliases[trimmed]; ok {
		return canonical
	}

	// Headers that already use the canonical names pass through unchanged,
	// case-insensitively.
	for _, canonical := range []string{"eventID", "accountID", "userReference",
		"type", "amount", "postedAt", "status", "statusUpdatedAt", "openedAt",
		"loanType", "creditLimit"} {
		if trimmed == strings.ToLower(canonical) {
			return canonical
		}
	}

	return trimmed
}
