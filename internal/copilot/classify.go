// Package copilot answers resident questions from the current risk snapshot,
// preferring a language model and falling back to deterministic templates.
package copilot

import (
	"regexp"
	"strings"

	"github.com/couchcryptid/civic-risk-service/internal/domain"
)

type rule struct {
	qt      domain.QuestionType
	pattern *regexp.Regexp
}

// rules are checked in order; the first match wins.
var rules = []rule{
	{domain.QuestionWeather, regexp.MustCompile(`weather|rain|storm|temperature|forecast|heat|wind`)},
	{domain.QuestionAlerts, regexp.MustCompile(`alert|warning|emergency|danger|extreme`)},
	{domain.QuestionCity, regexp.MustCompile(`city|service|garbage|trash|announcement|public works|government`)},
	{domain.QuestionSafety, regexp.MustCompile(`crime|safety|incident|road|outage|police`)},
	{domain.QuestionFlood, regexp.MustCompile(`flood|river|gauge|water level`)},
	{domain.QuestionAir, regexp.MustCompile(`air|aqi|pollution|smoke|ozone|pm2`)},
}

// Classify tags a question with exactly one question type.
func Classify(question string) domain.QuestionType {
	q := strings.ToLower(question)
	for _, r := range rules {
		if r.pattern.MatchString(q) {
			return r.qt
		}
	}
	return domain.QuestionGeneral
}
