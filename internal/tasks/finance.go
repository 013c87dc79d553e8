package tasks

import (
	"fmt"
	"sort"

	"github.com/khukmani/bettervisuals/internal/dataset"
	"github.com/khukmani/bettervisuals/internal/services"
	"github.com/khukmani/bettervisuals/internal/shared"
)

// Finance artifact file names. Only the raw tables are cached; monthly views
// are derived per request because they depend on the selected date range.
const (
	ArtifactRegister = "register.json"
	ArtifactBudget   = "budget.json"
)

// FinanceArtifactNames is the full artifact set the finance pipeline persists.
var FinanceArtifactNames = []string{ArtifactRegister, ArtifactBudget}

// monthLayout renders transaction dates as budget month labels ("Apr 2023").
const monthLayout = "Jan 2006"

// monthWindow is how many distinct budget months the dashboard covers.
const monthWindow = 12

// rollingWindow is the trailing window of the inflow and outflow averages.
const rollingWindow = 3

// RegisterSchema is the column layout of the cached transaction register.
var RegisterSchema = []dataset.Column{
	{Name: "account", Kind: dataset.String},
	{Name: "flag", Kind: dataset.String},
	{Name: "date", Kind: dataset.Time},
	{Name: "payee", Kind: dataset.String},
	{Name: "category_group", Kind: dataset.String},
	{Name: "category", Kind: dataset.String},
	{Name: "memo", Kind: dataset.String},
	{Name: "outflow", Kind: dataset.Float},
	{Name: "inflow", Kind: dataset.Float},
	{Name: "cleared", Kind: dataset.String},
}

// BudgetSchema is the column layout of the cached month-category allocations.
var BudgetSchema = []dataset.Column{
	{Name: "month", Kind: dataset.String},
	{Name: "category_group", Kind: dataset.String},
	{Name: "category", Kind: dataset.String},
	{Name: "budgeted", Kind: dataset.Float},
	{Name: "activity", Kind: dataset.Float},
	{Name: "available", Kind: dataset.Float},
}

// MonthlySchema is the layout of the derived per-month income and expense table.
var MonthlySchema = []dataset.Column{
	{Name: "month_index", Kind: dataset.Int},
	{Name: "month", Kind: dataset.String},
	{Name: "inflow", Kind: dataset.Float},
	{Name: "outflow", Kind: dataset.Float},
	{Name: "budgeted", Kind: dataset.Float},
	{Name: "activity", Kind: dataset.Float},
	{Name: "available", Kind: dataset.Float},
	{Name: "savings", Kind: dataset.Float},
	{Name: "inflow_avg_3m", Kind: dataset.Float},
	{Name: "outflow_avg_3m", Kind: dataset.Float},
}

// AccountBalanceSchema is the layout of the derived per-account balance table.
var AccountBalanceSchema = []dataset.Column{
	{Name: "month_index", Kind: dataset.Int},
	{Name: "month", Kind: dataset.String},
	{Name: "account", Kind: dataset.String},
	{Name: "balance", Kind: dataset.Float},
}

// CategoryOutflowSchema is the layout of the derived expense breakdown table.
var CategoryOutflowSchema = []dataset.Column{
	{Name: "category_group", Kind: dataset.String},
	{Name: "category", Kind: dataset.String},
	{Name: "outflow", Kind: dataset.Float},
}

// BuildFinanceFrames converts a parsed budget archive into the two cached
// artifact tables.
func BuildFinanceFrames(archive *services.BudgetArchive) (*dataset.Frame, *dataset.Frame, error) {
	register := dataset.New(RegisterSchema...)
	for _, row := range archive.Register {
		err := register.Append(
			row.Account, row.Flag, row.Date, row.Payee,
			row.CategoryGroup, row.Category, row.Memo,
			row.Outflow, row.Inflow, row.Cleared,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("register table: %w", err)
		}
	}

	budget := dataset.New(BudgetSchema...)
	for _, row := range archive.Budget {
		err := budget.Append(
			row.Month, row.CategoryGroup, row.Category,
			row.Budgeted, row.Activity, row.Available,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("budget table: %w", err)
		}
	}

	return register, budget, nil
}

// MonthIndex builds the month labels the date range slider addresses: the
// last 12 distinct months of the budget table, in the table's own row order.
// Budget exports happen to list months chronologically, so this tracks the
// calendar only as long as that upstream ordering holds.
func MonthIndex(budget *dataset.Frame) []string {
	seen := make(map[string]bool)
	var months []string
	for i := 0; i < budget.Len(); i++ {
		month := budget.StringAt(i, "month")
		if !seen[month] {
			seen[month] = true
			months = append(months, month)
		}
	}

	if len(months) > monthWindow {
		months = months[len(months)-monthWindow:]
	}
	return months
}

// FinanceView is the derived table set for one date range selection.
type FinanceView struct {
	Months          []string
	Monthly         *dataset.Frame
	AccountBalances *dataset.Frame
	CategoryOutflow *dataset.Frame
}

// BuildFinanceView derives the monthly, per-account and per-category tables
// from the cached register and budget frames. from and to are inclusive
// positions in the month index; cumulative sums and rolling averages run over
// the full index before the range filter applies, so a narrowed range still
// shows the true running totals.
func BuildFinanceView(register, budget *dataset.Frame, from, to int) (*FinanceView, error) {
	months := MonthIndex(budget)
	if len(months) == 0 {
		return nil, fmt.Errorf("%w: budget table has no months", shared.ErrMalformedInput)
	}

	if from < 0 {
		from = 0
	}
	if to < 0 || to >= len(months) {
		to = len(months) - 1
	}
	if from > to {
		return nil, fmt.Errorf("%w: date range %d..%d", shared.ErrInvalidInput, from, to)
	}

	encoder := make(map[string]int, len(months))
	for i, month := range months {
		encoder[month] = i
	}

	// Transactions whose month falls outside the index are dropped.
	registerIdx := make([]int, register.Len())
	for i := 0; i < register.Len(); i++ {
		idx, ok := encoder[register.TimeAt(i, "date").Format(monthLayout)]
		if !ok {
			idx = -1
		}
		registerIdx[i] = idx
	}

	monthly, err := buildMonthly(register, budget, registerIdx, encoder, months, from, to)
	if err != nil {
		return nil, err
	}

	balances, err := buildAccountBalances(register, registerIdx, months, from, to)
	if err != nil {
		return nil, err
	}

	outflow, err := buildCategoryOutflow(register, registerIdx, from, to)
	if err != nil {
		return nil, err
	}

	return &FinanceView{
		Months:          months,
		Monthly:         monthly,
		AccountBalances: balances,
		CategoryOutflow: outflow,
	}, nil
}

func buildMonthly(register, budget *dataset.Frame, registerIdx []int, encoder map[string]int, months []string, from, to int) (*dataset.Frame, error) {
	inflow := make(map[int]float64)
	outflow := make(map[int]float64)
	for i := 0; i < register.Len(); i++ {
		idx := registerIdx[i]
		if idx < 0 {
			continue
		}
		inflow[idx] += register.FloatAt(i, "inflow")
		outflow[idx] += register.FloatAt(i, "outflow")
	}

	budgeted := make(map[int]float64)
	activity := make(map[int]float64)
	available := make(map[int]float64)
	budgetMonths := make(map[int]bool)
	for i := 0; i < budget.Len(); i++ {
		idx, ok := encoder[budget.StringAt(i, "month")]
		if !ok {
			continue
		}
		budgetMonths[idx] = true
		budgeted[idx] += budget.FloatAt(i, "budgeted")
		activity[idx] += budget.FloatAt(i, "activity")
		available[idx] += budget.FloatAt(i, "available")
	}

	// Inner join: only months present in both tables produce a row.
	var indices []int
	for idx := range inflow {
		if budgetMonths[idx] {
			indices = append(indices, idx)
		}
	}
	sort.Ints(indices)

	savings := 0.0
	inflows := make([]float64, 0, len(indices))
	outflows := make([]float64, 0, len(indices))

	frame := dataset.New(MonthlySchema...)
	for i, idx := range indices {
		inflows = append(inflows, inflow[idx])
		outflows = append(outflows, outflow[idx])
		savings += inflow[idx] - outflow[idx]

		err := frame.Append(
			idx, months[idx],
			inflow[idx], outflow[idx],
			budgeted[idx], activity[idx], available[idx],
			savings,
			trailingMean(inflows, i),
			trailingMean(outflows, i),
		)
		if err != nil {
			return nil, fmt.Errorf("monthly table: %w", err)
		}
	}

	return frame.Filter(func(row int) bool {
		idx := frame.IntAt(row, "month_index")
		return idx >= from && idx <= to
	}), nil
}

// trailingMean averages the last rollingWindow values ending at position i,
// shrinking the window at the start of the series.
func trailingMean(values []float64, i int) float64 {
	start := i - rollingWindow + 1
	if start < 0 {
		start = 0
	}

	sum := 0.0
	for _, v := range values[start : i+1] {
		sum += v
	}
	return sum / float64(i+1-start)
}

func buildAccountBalances(register *dataset.Frame, registerIdx []int, months []string, from, to int) (*dataset.Frame, error) {
	type key struct {
		idx     int
		account string
	}

	net := make(map[key]float64)
	for i := 0; i < register.Len(); i++ {
		idx := registerIdx[i]
		if idx < 0 {
			continue
		}
		k := key{idx: idx, account: register.StringAt(i, "account")}
		net[k] += register.FloatAt(i, "inflow") - register.FloatAt(i, "outflow")
	}

	keys := make([]key, 0, len(net))
	for k := range net {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].idx != keys[j].idx {
			return keys[i].idx < keys[j].idx
		}
		return keys[i].account < keys[j].account
	})

	running := make(map[string]float64)
	frame := dataset.New(AccountBalanceSchema...)
	for _, k := range keys {
		running[k.account] += net[k]
		if err := frame.Append(k.idx, months[k.idx], k.account, running[k.account]); err != nil {
			return nil, fmt.Errorf("account balance table: %w", err)
		}
	}

	return frame.Filter(func(row int) bool {
		idx := frame.IntAt(row, "month_index")
		return idx >= from && idx <= to
	}), nil
}

func buildCategoryOutflow(register *dataset.Frame, registerIdx []int, from, to int) (*dataset.Frame, error) {
	type key struct {
		group    string
		category string
	}

	sums := make(map[key]float64)
	totalInflow := 0.0
	totalOutflow := 0.0

	for i := 0; i < register.Len(); i++ {
		idx := registerIdx[i]
		if idx < from || idx > to {
			continue
		}

		out := register.FloatAt(i, "outflow")
		totalInflow += register.FloatAt(i, "inflow")
		totalOutflow += out
		sums[key{group: register.StringAt(i, "category_group"), category: register.StringAt(i, "category")}] += out
	}

	keys := make([]key, 0, len(sums))
	for k := range sums {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].group != keys[j].group {
			return keys[i].group < keys[j].group
		}
		return keys[i].category < keys[j].category
	})

	frame := dataset.New(CategoryOutflowSchema...)
	for _, k := range keys {
		// Income rows are not expenses; the breakdown covers spending only.
		if k.group == "Inflow" {
			continue
		}
		if err := frame.Append(k.group, k.category, sums[k]); err != nil {
			return nil, fmt.Errorf("category outflow table: %w", err)
		}
	}

	// Whatever was not spent shows up as its own slice.
	if err := frame.Append("Unspent", "Unspent", totalInflow-totalOutflow); err != nil {
		return nil, fmt.Errorf("category outflow table: %w", err)
	}

	return frame, nil
}

// EncodeFinanceArtifacts serializes the cached finance tables.
func EncodeFinanceArtifacts(register, budget *dataset.Frame) (map[string][]byte, error) {
	registerData, err := register.EncodeSplit()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ArtifactRegister, err)
	}
	budgetData, err := budget.EncodeSplit()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ArtifactBudget, err)
	}

	return map[string][]byte{
		ArtifactRegister: registerData,
		ArtifactBudget:   budgetData,
	}, nil
}

// DecodeFinanceArtifacts parses the cached finance tables.
func DecodeFinanceArtifacts(raw map[string][]byte) (*dataset.Frame, *dataset.Frame, error) {
	register, err := dataset.DecodeSplit(raw[ArtifactRegister], RegisterSchema)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", ArtifactRegister, err)
	}
	budget, err := dataset.DecodeSplit(raw[ArtifactBudget], BudgetSchema)
	if err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", ArtifactBudget, err)
	}
	return register, budget, nil
}
