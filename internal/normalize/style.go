package normalize

import (
	"fmt"
	"math"
	"strings"
)

type Bucket string

const (
	BucketPositive Bucket = "positive"
	BucketNeutral  Bucket = "neutral"
	BucketNegative Bucket = "negative"
)

const bucketThreshold = 0.2

// ScoreToColorBucket maps a sentiment score to its colour bucket. The
// thresholds are exclusive: exactly ±0.2 is neutral, as is a missing score.
func ScoreToColorBucket(score *float64) Bucket {
	if score == nil || math.IsNaN(*score) {
		return BucketNeutral
	}
	switch {
	case *score > bucketThreshold:
		return BucketPositive
	case *score < -bucketThreshold:
		return BucketNegative
	default:
		return BucketNeutral
	}
}

// DisplayScore formats a score for cards, "N/A" when absent.
func DisplayScore(score *float64) string {
	if score == nil || math.IsNaN(*score) || math.IsInf(*score, 0) {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *score)
}

type SentimentStyle struct {
	Color      string `json:"color"`
	Background string `json:"background"`
	Icon       string `json:"icon"`
}

var sentimentStyles = map[Bucket]SentimentStyle{
	BucketPositive: {Color: "#15803d", Background: "#dcfce7", Icon: "▲"},
	BucketNeutral:  {Color: "#4b5563", Background: "#f3f4f6", Icon: "●"},
	BucketNegative: {Color: "#b91c1c", Background: "#fee2e2", Icon: "▼"},
}

func SentimentStyleFor(b Bucket) SentimentStyle {
	if style, ok := sentimentStyles[b]; ok {
		return style
	}
	return sentimentStyles[BucketNeutral]
}

type EdgeStyle struct {
	Color string `json:"color"`
	Dash  string `json:"dash"`
	Label string `json:"label"`
}

var edgeStyles = map[string]EdgeStyle{
	"alliance":    {Color: "#15803d", Dash: "solid", Label: "Alliance"},
	"support":     {Color: "#22c55e", Dash: "solid", Label: "Support"},
	"cooperation": {Color: "#84cc16", Dash: "solid", Label: "Cooperation"},
	"negotiation": {Color: "#0ea5e9", Dash: "dashed", Label: "Negotiation"},
	"neutral":     {Color: "#9ca3af", Dash: "dotted", Label: "Neutral"},
	"tension":     {Color: "#f59e0b", Dash: "dashed", Label: "Tension"},
	"opposition":  {Color: "#f97316", Dash: "solid", Label: "Opposition"},
	"conflict":    {Color: "#dc2626", Dash: "solid", Label: "Conflict"},
}

// StyleFor returns the edge style of a relationship type. Unknown or empty
// labels get the neutral style, labelled with the raw text when there is one.
func StyleFor(label string) EdgeStyle {
	key := strings.ToLower(strings.TrimSpace(label))
	if style, ok := edgeStyles[key]; ok {
		return style
	}
	style := edgeStyles[DefaultRelationshipType]
	if key != "" {
		style.Label = strings.TrimSpace(label)
	}
	return style
}
