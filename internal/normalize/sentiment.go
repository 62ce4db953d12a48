package normalize

import (
	"sort"
	"strings"

	"github.com/sydialogue/dashboard/internal/models"
)

const (
	DefaultSentiment       = "neutral"
	PlaceholderReasoning   = "No analysis available"
	PlaceholderQuote       = "No quote available"
	PlaceholderSource      = "Unknown source"
	PlaceholderDescription = "No description available"
)

var (
	sentimentVocabulary = []string{"positive", "negative", "neutral", "mixed"}
	trendVocabulary     = []string{"improving", "declining", "stable", "deteriorating", "fluctuating"}
)

// canonicalLabel folds raw onto the vocabulary spelling when it matches one
// case-insensitively and otherwise returns it unchanged.
func canonicalLabel(raw string, vocabulary []string) string {
	raw = strings.TrimSpace(raw)
	for _, label := range vocabulary {
		if strings.EqualFold(raw, label) {
			return label
		}
	}
	return raw
}

func sentimentScore(v *float64) *float64 {
	if v == nil {
		return nil
	}
	s := clamp(*v, -1, 1)
	return &s
}

// NormalizeTarget reads one target's sentiment. It never fails: absent
// fields take their defaults (nil score, empty lists, placeholder text).
func NormalizeTarget(raw any) models.TargetSentiment {
	rec := newRecord(raw, targetAliases)

	t := models.TargetSentiment{
		Sentiment: canonicalLabel(rec.str("sentiment", DefaultSentiment), sentimentVocabulary),
		Score:     sentimentScore(rec.float("score")),
		Trend:     canonicalLabel(rec.str("trend", ""), trendVocabulary),
		Periods:   periods(rec),
		Evidence:  evidenceList(rec.list("evidence")),
		Themes:    rec.strings("themes"),
		Reasoning: rec.str("reasoning", PlaceholderReasoning),
	}

	t.ArticlesAnalyzed, _ = rec.count("articles_analyzed")
	t.Mentions, _ = rec.count("mentions")
	if n, ok := rec.count("periods_analyzed"); ok {
		t.PeriodsAnalyzed = n
	} else {
		t.PeriodsAnalyzed = len(t.Periods)
	}

	return t
}

// periods reads the period list, which older payloads keyed by period label
// instead of listing.
func periods(rec record) []models.PeriodEntry {
	out := []models.PeriodEntry{}
	v, ok := rec.value("periods")
	if !ok {
		return out
	}

	if keyed, ok := v.(map[string]any); ok && isKeyedByPeriod(keyed) {
		labels := make([]string, 0, len(keyed))
		for label := range keyed {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		for _, label := range labels {
			p := NormalizePeriod(keyed[label])
			if p.Period == "" {
				p.Period = strings.TrimSpace(label)
			}
			out = append(out, p)
		}
		return out
	}

	for _, item := range toList(v) {
		if asObject(item) == nil {
			continue
		}
		out = append(out, NormalizePeriod(item))
	}
	return out
}

func isKeyedByPeriod(m map[string]any) bool {
	if len(m) == 0 {
		return false
	}
	for _, alias := range periodAliases["period"] {
		if _, ok := m[alias]; ok {
			return false
		}
	}
	for _, v := range m {
		if _, ok := v.(map[string]any); !ok {
			return false
		}
	}
	return true
}

// NormalizePeriod reads one period bucket of a target's sentiment timeline.
func NormalizePeriod(raw any) models.PeriodEntry {
	rec := newRecord(raw, periodAliases)

	p := models.PeriodEntry{
		Period:    rec.str("period", ""),
		Sentiment: canonicalLabel(rec.str("sentiment", DefaultSentiment), sentimentVocabulary),
		Score:     sentimentScore(rec.float("score")),
		Themes:    rec.strings("themes"),
		Reasoning: rec.str("reasoning", ""),
		Evidence:  evidenceList(rec.list("evidence")),
	}
	p.ArticleCount, _ = rec.count("article_count")
	p.MentionCount, _ = rec.count("mention_count")

	for i := range p.Evidence {
		if p.Evidence[i].Period == "" {
			p.Evidence[i].Period = p.Period
		}
	}
	return p
}

func evidenceList(items []any) []models.EvidenceQuote {
	out := make([]models.EvidenceQuote, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		out = append(out, NormalizeEvidence(item))
	}
	return out
}

// NormalizeEvidence reads one evidence quote. A string that is not a JSON
// object is the quote itself.
func NormalizeEvidence(raw any) models.EvidenceQuote {
	if s, ok := raw.(string); ok && asObject(s) == nil {
		quote := cleanText(s)
		if quote == "" {
			quote = PlaceholderQuote
		}
		return models.EvidenceQuote{Quote: quote, Source: PlaceholderSource}
	}

	rec := newRecord(raw, evidenceAliases)
	return models.EvidenceQuote{
		Quote:     rec.str("quote", PlaceholderQuote),
		Source:    rec.str("source", PlaceholderSource),
		Date:      rec.str("date", ""),
		URL:       rec.str("url", ""),
		Sentiment: canonicalLabel(rec.str("sentiment", ""), sentimentVocabulary),
		Period:    rec.str("period", ""),
	}
}
