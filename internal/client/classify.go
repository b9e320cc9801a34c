package client

import (
	"errors"
	"regexp"
)

// Outcome is what a gateway response means for the orchestrator.
type Outcome string

const (
	OutcomeOK           Outcome = "price-ok"
	OutcomeSymbolError  Outcome = "symbol-error"
	OutcomeMarketClosed Outcome = "market-closed"
	OutcomeOtherError   Outcome = "other-error"
	OutcomeNetworkError Outcome = "network-error"
)

type rule struct {
	pattern *regexp.Regexp
	outcome Outcome
}

// rules map gateway error text to outcomes, first match wins. The gateway
// reports these conditions only as text.
var rules = []rule{
	{regexp.MustCompile(`(?i)not found|invalid symbol|unknown symbol|no gold symbol|could not auto-detect`), OutcomeSymbolError},
	{regexp.MustCompile(`(?i)market (is |may be )?closed|no price data`), OutcomeMarketClosed},
}

// ClassifyText applies the rule list to an error message.
func ClassifyText(msg string) Outcome {
	for _, r := range rules {
		if r.pattern.MatchString(msg) {
			return r.outcome
		}
	}
	return OutcomeOtherError
}

// Classify maps a call result to an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, ErrNetwork) {
		return OutcomeNetworkError
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return ClassifyText(apiErr.Message)
	}
	return OutcomeOtherError
}
