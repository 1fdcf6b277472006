package services

import (
	"strings"

	"github.com/Lllllllleong/printerbridge/internal/config"
)

// IsAutoPrintEligible reports whether an order with the given paper type may
// be printed without an operator. Matching is a case-insensitive substring
// test, so "Standard" accepts "Standard Gloss".
func IsAutoPrintEligible(paperType string, cfg config.AutoPrintConfig) bool {
	if !cfg.Enabled {
		return false
	}
	paper := strings.ToLower(paperType)
	for _, allowed := range cfg.Types {
		if allowed == "" {
			continue
		}
		if strings.Contains(paper, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}
