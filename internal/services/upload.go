package services

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/khukmani/bettervisuals/internal/shared"
	"github.com/shopspring/decimal"
)

const (
	registerTable = "Register.csv"
	budgetTable   = "Budget.csv"
)

// currencyPattern strips currency symbols, thousands separators and whitespace,
// leaving only the characters a plain decimal number is made of.
var currencyPattern = regexp.MustCompile(`[^0-9.-]+`)

// registerDateLayouts are the date formats budget exports are known to use.
var registerDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"02.01.2006",
}

// BudgetArchive holds the two tables extracted from an uploaded budget export.
type BudgetArchive struct {
	Register []RegisterRow
	Budget   []BudgetRow
}

// ParseBudgetArchive extracts the register and budget tables from a zip
// archive. Tables are located by the trailing space-separated token of each
// entry name, so "My Budget as of 2023-04-01 - Register.csv" matches
// "Register.csv" regardless of the export's budget name.
func ParseBudgetArchive(data []byte) (*BudgetArchive, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip archive: %v", shared.ErrMalformedInput, err)
	}

	tables := make(map[string][][]string)
	for _, entry := range reader.File {
		if !strings.HasSuffix(entry.Name, ".csv") {
			continue
		}

		parts := strings.Split(entry.Name, " ")
		token := parts[len(parts)-1]
		if token != registerTable && token != budgetTable {
			continue
		}

		records, err := readCSVEntry(entry)
		if err != nil {
			return nil, err
		}
		tables[token] = records
	}

	registerRecords, ok := tables[registerTable]
	if !ok {
		return nil, fmt.Errorf("%w: archive is missing %s", shared.ErrMalformedInput, registerTable)
	}
	budgetRecords, ok := tables[budgetTable]
	if !ok {
		return nil, fmt.Errorf("%w: archive is missing %s", shared.ErrMalformedInput, budgetTable)
	}

	register, err := parseRegister(registerRecords)
	if err != nil {
		return nil, err
	}
	budget, err := parseBudget(budgetRecords)
	if err != nil {
		return nil, err
	}

	return &BudgetArchive{Register: register, Budget: budget}, nil
}

func readCSVEntry(entry *zip.File) ([][]string, error) {
	file, err := entry.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %v", shared.ErrMalformedInput, entry.Name, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: cannot parse %s: %v", shared.ErrMalformedInput, entry.Name, err)
	}

	return records, nil
}

// columnIndex maps header names to positions, failing when a required column
// is absent.
func columnIndex(header []string, required ...string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", shared.ErrMalformedInput, name)
		}
	}

	return index, nil
}

func parseRegister(records [][]string) ([]RegisterRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: register table is empty", shared.ErrMalformedInput)
	}

	cols, err := columnIndex(records[0],
		"Account", "Date", "Payee", "Category Group", "Category", "Outflow", "Inflow")
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	rows := make([]RegisterRow, 0, len(records)-1)
	for i, record := range records[1:] {
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		date, err := parseDate(cell("Date"))
		if err != nil {
			return nil, fmt.Errorf("register row %d: %w", i+1, err)
		}
		outflow, err := parseCurrency(cell("Outflow"))
		if err != nil {
			return nil, fmt.Errorf("register row %d: %w", i+1, err)
		}
		inflow, err := parseCurrency(cell("Inflow"))
		if err != nil {
			return nil, fmt.Errorf("register row %d: %w", i+1, err)
		}

		rows = append(rows, RegisterRow{
			Account:       cell("Account"),
			Flag:          cell("Flag"),
			Date:          date,
			Payee:         cell("Payee"),
			CategoryGroup: cell("Category Group"),
			Category:      cell("Category"),
			Memo:          cell("Memo"),
			Outflow:       outflow,
			Inflow:        inflow,
			Cleared:       cell("Cleared"),
		})
	}

	return rows, nil
}

func parseBudget(records [][]string) ([]BudgetRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: budget table is empty", shared.ErrMalformedInput)
	}

	cols, err := columnIndex(records[0],
		"Month", "Category Group", "Category", "Budgeted", "Activity", "Available")
	if err != nil {
		return nil, fmt.Errorf("budget: %w", err)
	}

	rows := make([]BudgetRow, 0, len(records)-1)
	for i, record := range records[1:] {
		cell := func(name string) string {
			idx, ok := cols[name]
			if !ok || idx >= len(record) {
				return ""
			}
			return record[idx]
		}

		budgeted, err := parseCurrency(cell("Budgeted"))
		if err != nil {
			return nil, fmt.Errorf("budget row %d: %w", i+1, err)
		}
		activity, err := parseCurrency(cell("Activity"))
		if err != nil {
			return nil, fmt.Errorf("budget row %d: %w", i+1, err)
		}
		available, err := parseCurrency(cell("Available"))
		if err != nil {
			return nil, fmt.Errorf("budget row %d: %w", i+1, err)
		}

		rows = append(rows, BudgetRow{
			Month:         cell("Month"),
			CategoryGroup: cell("Category Group"),
			Category:      cell("Category"),
			Budgeted:      budgeted,
			Activity:      activity,
			Available:     available,
		})
	}

	return rows, nil
}

// parseCurrency normalizes a currency-formatted string ("$1,234.56",
// "-€200,00" after symbol stripping) into a float. Empty cells parse as zero.
func parseCurrency(value string) (float64, error) {
	cleaned := currencyPattern.ReplaceAllString(value, "")
	if cleaned == "" || cleaned == "-" {
		return 0, nil
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%w: unparseable currency value %q", shared.ErrMalformedInput, value)
	}

	f, _ := d.Float64()
	return f, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range registerDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", shared.ErrMalformedInput, value)
}
