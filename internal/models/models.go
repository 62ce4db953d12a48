package models

type SentimentReport struct {
	Targets map[string]TargetSentiment `json:"targets"`
	// Order lists target names sorted, so cards render in a stable order.
	Order []string `json:"order"`
}

type TargetSentiment struct {
	Sentiment        string          `json:"sentiment"`
	Score            *float64        `json:"score"`
	Trend            string          `json:"trend,omitempty"`
	ArticlesAnalyzed int             `json:"articles_analyzed"`
	Mentions         int             `json:"mentions"`
	PeriodsAnalyzed  int             `json:"periods_analyzed"`
	Periods          []PeriodEntry   `json:"periods"`
	Evidence         []EvidenceQuote `json:"evidence"`
	Themes           []string        `json:"themes"`
	Reasoning        string          `json:"reasoning"`
}

type PeriodEntry struct {
	Period       string          `json:"period"`
	Sentiment    string          `json:"sentiment"`
	Score        *float64        `json:"score"`
	ArticleCount int             `json:"article_count"`
	MentionCount int             `json:"mention_count"`
	Themes       []string        `json:"themes"`
	Reasoning    string          `json:"reasoning"`
	Evidence     []EvidenceQuote `json:"evidence"`
}

type EvidenceQuote struct {
	Quote     string `json:"quote"`
	Source    string `json:"source"`
	Date      string `json:"date,omitempty"`
	URL       string `json:"url,omitempty"`
	Sentiment string `json:"sentiment,omitempty"`
	Period    string `json:"period,omitempty"`
}

type RelationshipReport struct {
	Relationships []RelationshipEdge `json:"relationships"`
	Stats         ReportStats        `json:"stats"`
	Nodes         []EntityRef        `json:"nodes"`
}

type ReportStats struct {
	TotalArticles         int `json:"total_articles"`
	RelationshipsAnalyzed int `json:"relationships_analyzed"`
	NodeCount             int `json:"node_count"`
	EntityPairsFound      int `json:"entity_pairs_found"`
}

type RelationshipEdge struct {
	Entity1          string               `json:"entity1"`
	Entity1EN        string               `json:"entity1_en,omitempty"`
	Entity1AR        string               `json:"entity1_ar,omitempty"`
	Entity2          string               `json:"entity2"`
	Entity2EN        string               `json:"entity2_en,omitempty"`
	Entity2AR        string               `json:"entity2_ar,omitempty"`
	RelationshipType string               `json:"relationship_type"`
	Direction        string               `json:"direction"`
	Strength         float64              `json:"strength"`
	Evolution        string               `json:"evolution"`
	ArticleCount     int                  `json:"article_count"`
	Description      string               `json:"description"`
	Themes           []string             `json:"themes"`
	Evidence         []EvidenceQuote      `json:"evidence"`
	Timeline         []RelationshipPeriod `json:"timeline"`
}

// RelationshipPeriod is one bucket of a relationship timeline.
type RelationshipPeriod struct {
	Period           string   `json:"period"`
	RelationshipType string   `json:"relationship_type"`
	Strength         *float64 `json:"strength"`
	Description      string   `json:"description"`
	ArticleCount     int      `json:"article_count"`
}

type EntityRef struct {
	ID         string `json:"id"`
	NameEN     string `json:"name_en"`
	NameAR     string `json:"name_ar,omitempty"`
	Type       string `json:"type"`
	ActiveFrom string `json:"active_from,omitempty"`
	ActiveTo   string `json:"active_to,omitempty"`
}

// Snapshot is the cached relationship payload; Timestamp is epoch milliseconds
// and is informational only.
type Snapshot struct {
	Data      RelationshipReport `json:"data"`
	Timestamp int64              `json:"timestamp"`
}

// Article is an entry of the analysis service's article index.
type Article struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
