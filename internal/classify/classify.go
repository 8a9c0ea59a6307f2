package classify

import (
	"strings"

	"findecoder/pkg/contracts/domain"
)

// keywordTable maps each statement type to the vocabulary that identifies it.
// Matching is a case-insensitive substring scan over header names and
// first-column labels.
var keywordTable = map[domain.StatementType][]string{
	domain.StatementBalanceSheet: {
		"assets",
		"liabilities",
		"equity",
	},
	domain.StatementProfitAndLoss: {
		"revenue",
		"expenses",
		"net income",
		"gross profit",
		"cost of goods",
	},
	domain.StatementCashFlow: {
		"operating activities",
		"investing activities",
		"financing activities",
	},
}

// Classify determines which financial statement a table most resembles.
// The type with the most keyword matches wins; an exact tie between the
// leaders, or no match at all, yields Unknown. Never fails.
func Classify(doc *domain.TabularDocument) domain.StatementType {
	corpus := buildCorpus(doc)

	scores := make(map[domain.StatementType]int, len(keywordTable))
	for statement, keywords := range keywordTable {
		for _, keyword := range keywords {
			if strings.Contains(corpus, keyword) {
				scores[statement]++
			}
		}
	}

	best := domain.StatementUnknown
	bestScore := 0
	tied := false
	for _, statement := range []domain.StatementType{
		domain.StatementBalanceSheet,
		domain.StatementProfitAndLoss,
		domain.StatementCashFlow,
	} {
		score := scores[statement]
		switch {
		case score > bestScore:
			best = statement
			bestScore = score
			tied = false
		case score == bestScore && score > 0:
			tied = true
		}
	}

	if bestScore == 0 || tied {
		return domain.StatementUnknown
	}
	return best
}

// buildCorpus lowercases the searchable text: every header name plus each
// row's first-column label.
func buildCorpus(doc *domain.TabularDocument) string {
	var sb strings.Builder
	for _, column := range doc.Columns {
		sb.WriteString(strings.ToLower(column))
		sb.WriteByte('\n')
	}
	if len(doc.Columns) > 0 {
		first := doc.Columns[0]
		for _, row := range doc.Rows {
			if cell, ok := row[first]; ok && cell.Kind == domain.CellText {
				sb.WriteString(strings.ToLower(cell.Raw))
				sb.WriteByte('\n')
			}
		}
	}
	return sb.String()
}
