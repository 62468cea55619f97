package market

import (
	"strings"

	"github.com/ajitpratap0/marketoracle/internal/marketmodel"
)

// eventKeywords maps an EventType to the lowercase keywords whose presence
// in a market's question classifies it, checked in declaration order so
// that an earlier, more specific category wins over "other" — the same
// ordered-substring-match idiom as the teacher's retryable-error
// classification in internal/exchange/retry.go.
var eventKeywords = []struct {
	eventType marketmodel.EventType
	keywords  []string
}{
	{marketmodel.EventTypeElection, []string{"election", "president", "presidential", "primary", "senate", "governor", "ballot", "vote share", "electoral"}},
	{marketmodel.EventTypeCourt, []string{"supreme court", "court rule", "verdict", "lawsuit", "indictment", "convicted", "appeal", "ruling"}},
	{marketmodel.EventTypePolicy, []string{"fed", "rate cut", "rate hike", "tariff", "legislation", "bill pass", "policy", "regulation", "congress"}},
	{marketmodel.EventTypeGeopolitical, []string{"war", "invasion", "ceasefire", "sanctions", "nato", "treaty", "coup"}},
	{marketmodel.EventTypeEconomic, []string{"recession", "gdp", "inflation", "unemployment", "cpi", "jobs report", "earnings"}},
}

// ClassifyEventType returns the EventType whose keyword set first matches a
// substring of question (case-insensitive), defaulting to EventTypeOther.
func ClassifyEventType(question string) marketmodel.EventType {
	lower := strings.ToLower(question)
	for _, entry := range eventKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.eventType
			}
		}
	}
	return marketmodel.EventTypeOther
}
