package dashboard

import (
	"github.com/sydialogue/dashboard/internal/models"
	"github.com/sydialogue/dashboard/internal/normalize"
)

// Where a RelationshipView's data came from.
const (
	SourceCache    = "cache"
	SourceUpstream = "upstream"
	SourceNone     = "none"
)

type TargetCard struct {
	Name string `json:"name"`
	models.TargetSentiment
	Bucket       normalize.Bucket         `json:"bucket"`
	DisplayScore string                   `json:"display_score"`
	Style        normalize.SentimentStyle `json:"style"`
}

// SentimentView is what the sentiment panel renders. NoData is set when the
// service answered with something that could not be read.
type SentimentView struct {
	Targets []TargetCard `json:"targets"`
	NoData  bool         `json:"no_data"`
}

type EdgeView struct {
	models.RelationshipEdge
	Score float64             `json:"score"`
	Style normalize.EdgeStyle `json:"style"`
}

type RelationshipView struct {
	Relationships []EdgeView         `json:"relationships"`
	Nodes         []models.EntityRef `json:"nodes"`
	Stats         models.ReportStats `json:"stats"`
	// Timestamp is the snapshot time in epoch milliseconds, zero without data.
	Timestamp int64  `json:"timestamp"`
	Source    string `json:"source"`
	NoData    bool   `json:"no_data"`
}

func newSentimentView(report *models.SentimentReport) SentimentView {
	view := SentimentView{Targets: make([]TargetCard, 0, len(report.Order))}
	for _, name := range report.Order {
		t, ok := report.Targets[name]
		if !ok {
			continue
		}
		bucket := normalize.ScoreToColorBucket(t.Score)
		view.Targets = append(view.Targets, TargetCard{
			Name:            name,
			TargetSentiment: t,
			Bucket:          bucket,
			DisplayScore:    normalize.DisplayScore(t.Score),
			Style:           normalize.SentimentStyleFor(bucket),
		})
	}
	return view
}

func noSentiment() SentimentView {
	return SentimentView{Targets: []TargetCard{}, NoData: true}
}

func newRelationshipView(snap models.Snapshot, source string) RelationshipView {
	report := snap.Data
	view := RelationshipView{
		Relationships: make([]EdgeView, 0, len(report.Relationships)),
		Nodes:         report.Nodes,
		Stats:         report.Stats,
		Timestamp:     snap.Timestamp,
		Source:        source,
	}
	if view.Nodes == nil {
		view.Nodes = []models.EntityRef{}
	}
	for _, e := range report.Relationships {
		view.Relationships = append(view.Relationships, EdgeView{
			RelationshipEdge: e,
			Score:            normalize.RelationshipScore(e.RelationshipType),
			Style:            normalize.StyleFor(e.RelationshipType),
		})
	}
	return view
}

func noRelationships() RelationshipView {
	return RelationshipView{
		Relationships: []EdgeView{},
		Nodes:         []models.EntityRef{},
		Source:        SourceNone,
		NoData:        true,
	}
}
