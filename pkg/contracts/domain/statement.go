package domain

// StatementType classifies what a financial table represents.
type StatementType string

const (
	StatementBalanceSheet  StatementType = "balance_sheet"
	StatementProfitAndLoss StatementType = "profit_loss"
	StatementCashFlow      StatementType = "cash_flow"
	StatementUnknown       StatementType = "unknown"
)

// DisplayName returns the human-readable statement name used in prompts
// and report headings.
func (s StatementType) DisplayName() string {
	switch s {
	case StatementBalanceSheet:
		return "Balance Sheet"
	case StatementProfitAndLoss:
		return "Profit & Loss Statement"
	case StatementCashFlow:
		return "Cash Flow Statement"
	default:
		return "Financial Statement"
	}
}
