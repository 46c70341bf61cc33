package format

import (
	"unicode/utf8"

	"github.com/scrapesome/scrapesome/models"
)

// TokenStats reports how much smaller the formatted output is than the raw
// page, in estimated tokens.
func TokenStats(rawHTML, formatted string) models.TokenInfo {
	info := models.TokenInfo{
		OriginalEstimate:  estimateTokens(rawHTML),
		FormattedEstimate: estimateTokens(formatted),
	}
	if info.OriginalEstimate > 0 {
		saved := info.OriginalEstimate - info.FormattedEstimate
		info.SavingsPercent = float64(saved) / float64(info.OriginalEstimate) * 100
	}
	return info
}

// estimateTokens divides the rune count by three, splitting the difference
// between English (~4 chars/token) and CJK (~1.5 chars/token) text. Callers
// wanting exact counts need a real tokenizer.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	switch {
	case n == 0:
		return 0
	case n < 3:
		return 1
	default:
		return n / 3
	}
}
