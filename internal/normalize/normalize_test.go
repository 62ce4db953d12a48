package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sydialogue/dashboard/internal/models"
)

func ptr(v float64) *float64 { return &v }

func TestScoreToColorBucket(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		score *float64
		want  Bucket
	}{
		{"upper bound is neutral", ptr(0.2), BucketNeutral},
		{"just above upper bound", ptr(0.2001), BucketPositive},
		{"lower bound is neutral", ptr(-0.2), BucketNeutral},
		{"just below lower bound", ptr(-0.2001), BucketNegative},
		{"zero", ptr(0), BucketNeutral},
		{"nil", nil, BucketNeutral},
		{"nan", ptr(math.NaN()), BucketNeutral},
		{"strong positive", ptr(1), BucketPositive},
		{"strong negative", ptr(-1), BucketNegative},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ScoreToColorBucket(tc.score); got != tc.want {
				t.Fatalf("ScoreToColorBucket() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestRelationshipScore(t *testing.T) {
	t.Parallel()

	tests := map[string]float64{
		"alliance":     1.0,
		"support":      0.7,
		"cooperation":  0.5,
		"negotiation":  0.2,
		"neutral":      0.0,
		"tension":      -0.3,
		"opposition":   -0.6,
		"conflict":     -1.0,
		"Conflict":     -1.0,
		"made_up_type": 0,
		"":             0,
	}

	for label, want := range tests {
		if got := RelationshipScore(label); got != want {
			t.Fatalf("RelationshipScore(%q) = %v, want %v", label, got, want)
		}
	}
}

func TestDisplayScore(t *testing.T) {
	t.Parallel()

	if got := DisplayScore(nil); got != "N/A" {
		t.Fatalf("DisplayScore(nil) = %q", got)
	}
	if got := DisplayScore(ptr(math.Inf(1))); got != "N/A" {
		t.Fatalf("DisplayScore(+Inf) = %q", got)
	}
	if got := DisplayScore(ptr(-0.456)); got != "-0.46" {
		t.Fatalf("DisplayScore(-0.456) = %q", got)
	}
}

func TestNormalizeEvidenceAliasFields(t *testing.T) {
	t.Parallel()

	got := NormalizeEvidence(map[string]any{"text": "hello", "published": "2024-01-01"})
	want := models.EvidenceQuote{Quote: "hello", Date: "2024-01-01", Source: PlaceholderSource}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NormalizeEvidence() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeEvidenceAliasPriority(t *testing.T) {
	t.Parallel()

	got := NormalizeEvidence(map[string]any{
		"content":   "third",
		"text":      "second",
		"quote":     "first",
		"article":   "Article title",
		"title":     "Title wins",
		"timestamp": "1700000000",
	})

	if got.Quote != "first" {
		t.Fatalf("unexpected quote: %q", got.Quote)
	}
	if got.Source != "Title wins" {
		t.Fatalf("unexpected source: %q", got.Source)
	}
	if got.Date != "1700000000" {
		t.Fatalf("unexpected date: %q", got.Date)
	}
}

func TestNormalizeEvidenceSkipsBlankAndMistyped(t *testing.T) {
	t.Parallel()

	got := NormalizeEvidence(map[string]any{
		"quote":  "   ",
		"text":   map[string]any{"nested": true},
		"source": []any{"a"},
	})

	if got.Quote != PlaceholderQuote {
		t.Fatalf("expected quote placeholder, got %q", got.Quote)
	}
	if got.Source != PlaceholderSource {
		t.Fatalf("expected source placeholder, got %q", got.Source)
	}
}

func TestNormalizeEvidenceStripsMarkup(t *testing.T) {
	t.Parallel()

	got := NormalizeEvidence(map[string]any{"quote": "<p>Talks   resumed in <b>Astana</b> &amp; Geneva</p>"})
	if got.Quote != "Talks resumed in Astana & Geneva" {
		t.Fatalf("unexpected quote: %q", got.Quote)
	}

	bare := NormalizeEvidence("  a bare quote ")
	if bare.Quote != "a bare quote" || bare.Source != PlaceholderSource {
		t.Fatalf("unexpected bare evidence: %+v", bare)
	}

	escaped := NormalizeEvidence("the &lt;b&gt;ceasefire&lt;/b&gt; collapsed")
	if escaped.Quote != "the ceasefire collapsed" {
		t.Fatalf("unexpected escaped quote: %q", escaped.Quote)
	}
}

func TestNormalizeEvidenceBraceQuoteThatIsNotJSON(t *testing.T) {
	t.Parallel()

	got := NormalizeEvidence("{sic} the talks stalled")
	if got.Quote != "{sic} the talks stalled" || got.Source != PlaceholderSource {
		t.Fatalf("unexpected evidence: %+v", got)
	}

	obj := NormalizeEvidence(`{"quote": "from json", "source": "Enab Baladi"}`)
	if obj.Quote != "from json" || obj.Source != "Enab Baladi" {
		t.Fatalf("unexpected evidence from json text: %+v", obj)
	}
}

func TestParseSentimentPayloadMalformed(t *testing.T) {
	t.Parallel()

	inputs := []any{
		nil,
		"",
		"not json at all",
		"{broken",
		"[1, 2",
		`"just a string"`,
		"42",
		[]byte("{\"targets\": "),
	}

	for _, in := range inputs {
		report, err := ParseSentimentPayload(in)
		if report != nil {
			t.Fatalf("ParseSentimentPayload(%v) returned report %+v", in, report)
		}
		if !errors.Is(err, ErrUndecodable) {
			t.Fatalf("ParseSentimentPayload(%v) error = %v, want ErrUndecodable", in, err)
		}
	}
}

func TestParseSentimentPayloadEmbeddedError(t *testing.T) {
	t.Parallel()

	report, err := ParseSentimentPayload(`{"error": "No targets provided"}`)
	if report != nil {
		t.Fatalf("expected nil report, got %+v", report)
	}

	var payloadErr *PayloadError
	if !errors.As(err, &payloadErr) {
		t.Fatalf("expected PayloadError, got %v", err)
	}
	if payloadErr.Message != "No targets provided" {
		t.Fatalf("unexpected message: %q", payloadErr.Message)
	}
}

func TestParseSentimentPayloadUnwrapsModelOutput(t *testing.T) {
	t.Parallel()

	raw := "<think>weighing {the} sources</think>\n```json\n" +
		`{"targets": {"Russia": {"label": "Positive", "score": 0.5, "analysis": "Backs the regime"}}}` +
		"\n```"

	report, err := ParseSentimentPayload(raw)
	if err != nil {
		t.Fatalf("ParseSentimentPayload error: %v", err)
	}

	russia, ok := report.Targets["Russia"]
	if !ok {
		t.Fatalf("missing target, got %v", report.Order)
	}
	if russia.Sentiment != "positive" {
		t.Fatalf("unexpected sentiment: %q", russia.Sentiment)
	}
	if russia.Reasoning != "Backs the regime" {
		t.Fatalf("unexpected reasoning: %q", russia.Reasoning)
	}
}

func TestParseSentimentPayloadKeepsWrapperLookalikesInValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		reasoning string
	}{
		{"code fence", "quoted as ```code``` in text"},
		{"think close tag", "model said </think> here"},
		{"fenced json", "see ```json {\"x\": 1}``` above"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			body, err := json.Marshal(map[string]any{
				"targets": map[string]any{
					"Russia": map[string]any{"sentiment": "Negative", "score": -0.3, "reasoning": tt.reasoning},
				},
			})
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}

			report, err := ParseSentimentPayload(string(body))
			if err != nil {
				t.Fatalf("ParseSentimentPayload error: %v", err)
			}
			russia, ok := report.Targets["Russia"]
			if !ok || russia.Sentiment != "negative" {
				t.Fatalf("unexpected target: %+v", report.Targets)
			}
			if russia.Score == nil || *russia.Score != -0.3 {
				t.Fatalf("unexpected score: %v", russia.Score)
			}
		})
	}
}

func TestParseSentimentPayloadKeepsFenceInReasoning(t *testing.T) {
	t.Parallel()

	report, err := ParseSentimentPayload(json.RawMessage(
		`{"targets": {"HTS": {"sentiment": "neutral", "reasoning": "quoted as ` + "```code```" + ` in text"}}}`))
	if err != nil {
		t.Fatalf("ParseSentimentPayload error: %v", err)
	}
	if got := report.Targets["HTS"].Reasoning; got != "quoted as ```code``` in text" {
		t.Fatalf("unexpected reasoning: %q", got)
	}
}

func TestParseSentimentPayloadAcceptsDecodedAndNested(t *testing.T) {
	t.Parallel()

	decoded := map[string]any{
		"sentiment_analysis": `{"targets": {"civilians": {"sentiment": "neutral"}}}`,
	}
	report, err := ParseSentimentPayload(decoded)
	if err != nil {
		t.Fatalf("ParseSentimentPayload error: %v", err)
	}
	if len(report.Order) != 1 || report.Order[0] != "civilians" {
		t.Fatalf("unexpected targets: %v", report.Order)
	}

	doubleEncoded, _ := json.Marshal(`{"targets": {"HTS": {"score": -0.3}}}`)
	report, err = ParseSentimentPayload(json.RawMessage(doubleEncoded))
	if err != nil {
		t.Fatalf("ParseSentimentPayload(double encoded) error: %v", err)
	}
	if _, ok := report.Targets["HTS"]; !ok {
		t.Fatalf("expected HTS target, got %v", report.Order)
	}
}

func TestParseSentimentPayloadImplicitTargets(t *testing.T) {
	t.Parallel()

	report, err := ParseSentimentPayload(`{"USA": {"sentiment": "negative"}, "Turkey": {"sentiment": "positive"}, "note": "ignored"}`)
	if err != nil {
		t.Fatalf("ParseSentimentPayload error: %v", err)
	}
	if diff := cmp.Diff([]string{"Turkey", "USA"}, report.Order); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestParseSentimentPayloadScoresStayInRange(t *testing.T) {
	t.Parallel()

	raw := `{"targets": {
		"a": {"score": 1.7},
		"b": {"score": -3},
		"c": {"score": "0.4"},
		"d": {"score": "strongly negative"},
		"e": {"score": null},
		"f": {"sentiment_score": -0.25},
		"g": {"score": true}
	}}`

	report, err := ParseSentimentPayload(raw)
	if err != nil {
		t.Fatalf("ParseSentimentPayload error: %v", err)
	}

	want := map[string]*float64{
		"a": ptr(1),
		"b": ptr(-1),
		"c": ptr(0.4),
		"d": nil,
		"e": nil,
		"f": ptr(-0.25),
		"g": nil,
	}

	for name, target := range report.Targets {
		if target.Score != nil {
			if math.IsNaN(*target.Score) || *target.Score < -1 || *target.Score > 1 {
				t.Fatalf("target %s score out of range: %v", name, *target.Score)
			}
		}
		if diff := cmp.Diff(want[name], target.Score); diff != "" {
			t.Fatalf("target %s score mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestNormalizeTargetDefaults(t *testing.T) {
	t.Parallel()

	got := NormalizeTarget(map[string]any{"evidence": "not a list", "themes": 12})
	want := models.TargetSentiment{
		Sentiment: DefaultSentiment,
		Periods:   []models.PeriodEntry{},
		Evidence:  []models.EvidenceQuote{},
		Themes:    []string{},
		Reasoning: PlaceholderReasoning,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NormalizeTarget() mismatch (-want +got):\n%s", diff)
	}

	if fromNil := NormalizeTarget(nil); fromNil.Themes == nil || fromNil.Evidence == nil {
		t.Fatalf("expected empty lists for nil input, got %+v", fromNil)
	}
}

func TestNormalizeTargetAliases(t *testing.T) {
	t.Parallel()

	got := NormalizeTarget(map[string]any{
		"label":         "Negative",
		"explanation":   "Described as repressive",
		"examples":      []any{map[string]any{"content": "quote one"}, "quote two"},
		"key_themes":    "detentions, sanctions",
		"article_count": 14.0,
		"mentions":      "31",
		"trend":         "Declining",
		"timeline": []any{
			map[string]any{"period": "2024-01", "label": "negative", "score": -0.6, "quotes": []any{map[string]any{"text": "q"}}},
			"ignored",
		},
	})

	if got.Sentiment != "negative" || got.Trend != "declining" {
		t.Fatalf("unexpected labels: %q %q", got.Sentiment, got.Trend)
	}
	if got.Reasoning != "Described as repressive" {
		t.Fatalf("unexpected reasoning: %q", got.Reasoning)
	}
	if len(got.Evidence) != 2 || got.Evidence[0].Quote != "quote one" || got.Evidence[1].Quote != "quote two" {
		t.Fatalf("unexpected evidence: %+v", got.Evidence)
	}
	if diff := cmp.Diff([]string{"detentions", "sanctions"}, got.Themes); diff != "" {
		t.Fatalf("unexpected themes (-want +got):\n%s", diff)
	}
	if got.ArticlesAnalyzed != 14 || got.Mentions != 31 {
		t.Fatalf("unexpected counts: %d %d", got.ArticlesAnalyzed, got.Mentions)
	}
	if got.PeriodsAnalyzed != 1 || len(got.Periods) != 1 {
		t.Fatalf("unexpected periods: %+v", got.Periods)
	}
	if ev := got.Periods[0].Evidence; len(ev) != 1 || ev[0].Period != "2024-01" {
		t.Fatalf("expected period tag on nested evidence, got %+v", ev)
	}
}

func TestNormalizeTargetKeyedPeriods(t *testing.T) {
	t.Parallel()

	got := NormalizeTarget(map[string]any{
		"periods": map[string]any{
			"2024-02": map[string]any{"sentiment": "neutral"},
			"2024-01": map[string]any{"sentiment": "positive", "score": 0.3},
		},
	})

	if len(got.Periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(got.Periods))
	}
	if got.Periods[0].Period != "2024-01" || got.Periods[1].Period != "2024-02" {
		t.Fatalf("unexpected period order: %+v", got.Periods)
	}
}

func TestNormalizeRelationshipEdgeMissingType(t *testing.T) {
	t.Parallel()

	edge := NormalizeRelationshipEdge(map[string]any{"entity1": "روسيا", "entity2": "تركيا"})
	if edge.RelationshipType != DefaultRelationshipType {
		t.Fatalf("unexpected type: %q", edge.RelationshipType)
	}
	if edge.Direction != DefaultDirection || edge.Evolution != DefaultEvolution {
		t.Fatalf("unexpected defaults: %+v", edge)
	}
	if edge.Strength != DefaultStrength {
		t.Fatalf("unexpected strength: %v", edge.Strength)
	}
	if edge.Themes == nil || edge.Evidence == nil || edge.Timeline == nil {
		t.Fatalf("expected empty lists, got %+v", edge)
	}

	style := StyleFor(edge.RelationshipType)
	if style != edgeStyles["neutral"] {
		t.Fatalf("unexpected style: %+v", style)
	}
}

func TestNormalizeRelationshipEdgeUnknownTypePassesThrough(t *testing.T) {
	t.Parallel()

	edge := NormalizeRelationshipEdge(map[string]any{
		"source":    "قسد",
		"target":    "داعش",
		"type":      "rivalry",
		"direction": "sideways",
		"weight":    "7",
	})

	if edge.RelationshipType != "rivalry" {
		t.Fatalf("expected pass-through type, got %q", edge.RelationshipType)
	}
	if edge.Entity1 != "قسد" || edge.Entity2 != "داعش" {
		t.Fatalf("unexpected endpoints: %q %q", edge.Entity1, edge.Entity2)
	}
	if edge.Direction != DefaultDirection {
		t.Fatalf("expected default direction, got %q", edge.Direction)
	}
	if edge.Strength != 1 {
		t.Fatalf("expected clamped strength, got %v", edge.Strength)
	}

	style := StyleFor(edge.RelationshipType)
	if style.Color != edgeStyles["neutral"].Color || style.Label != "rivalry" {
		t.Fatalf("unexpected fallback style: %+v", style)
	}
	if StyleFor("").Label != "Neutral" {
		t.Fatalf("unexpected style for empty label")
	}
}

func TestNormalizeRelationshipEdgeEmbeddedEntities(t *testing.T) {
	t.Parallel()

	edge := NormalizeRelationshipEdge(map[string]any{
		"entity1":           map[string]any{"id": "إيران", "name_en": "Iran", "type": "foreign_power"},
		"entity2":           "حزب الله",
		"entity2_en":        "Hezbollah",
		"relationship_type": "SUPPORT",
	})

	if edge.Entity1 != "إيران" || edge.Entity1EN != "Iran" {
		t.Fatalf("unexpected entity1: %q %q", edge.Entity1, edge.Entity1EN)
	}
	if edge.Entity2EN != "Hezbollah" {
		t.Fatalf("unexpected entity2 name: %q", edge.Entity2EN)
	}
	if edge.RelationshipType != "support" {
		t.Fatalf("unexpected type: %q", edge.RelationshipType)
	}
}

func TestRelationshipEdgeRoundTrip(t *testing.T) {
	t.Parallel()

	edge := models.RelationshipEdge{
		Entity1:          "روسيا",
		Entity1EN:        "Russia",
		Entity2:          "النظام",
		Entity2EN:        "Assad Regime",
		RelationshipType: "alliance",
		Direction:        "e1_to_e2",
		Strength:         0.9,
		Evolution:        "stable",
		ArticleCount:     12,
		Description:      "Military backing",
		Themes:           []string{"airstrikes", "diplomacy"},
		Evidence: []models.EvidenceQuote{
			{Quote: "Moscow reaffirmed its support", Source: PlaceholderSource, Date: "2024-03-01"},
		},
		Timeline: []models.RelationshipPeriod{
			{Period: "2024-03", RelationshipType: "alliance", Strength: ptr(0.4), Description: "close", ArticleCount: 3},
			{Period: "2024-04", RelationshipType: "tension", ArticleCount: 1},
		},
	}

	direct := NormalizeRelationshipEdge(EdgeWire(edge))
	if diff := cmp.Diff(edge, direct); diff != "" {
		t.Fatalf("wire map round trip mismatch (-want +got):\n%s", diff)
	}

	encoded, err := json.Marshal(EdgeWire(edge))
	if err != nil {
		t.Fatalf("marshal wire: %v", err)
	}
	decoded := NormalizeRelationshipEdge(encoded)
	if diff := cmp.Diff(edge, decoded); diff != "" {
		t.Fatalf("json round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRelationshipEdgeNormalizationIsIdempotent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  map[string]any
	}{
		{
			name: "markup in evidence",
			raw: map[string]any{
				"source": "تركيا",
				"target": "قسد",
				"type":   "Conflict",
				"evidence": []any{
					map[string]any{"text": "<i>shelling</i> near Manbij"},
				},
				"periods": []any{map[string]any{"month": "2023-11", "weight": 2}},
			},
		},
		{
			name: "escaped markup",
			raw: map[string]any{
				"source":      "روسيا",
				"target":      "تركيا",
				"type":        "negotiation",
				"description": "the &lt;b&gt;ceasefire&lt;/b&gt; collapsed",
				"themes":      []any{"&amp;lt;i&amp;gt;truce&amp;lt;/i&amp;gt;"},
				"evidence":    []any{"&lt;p&gt;Astana &amp;amp; Sochi&lt;/p&gt;"},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			first := NormalizeRelationshipEdge(tt.raw)
			second := NormalizeRelationshipEdge(EdgeWire(first))
			if diff := cmp.Diff(first, second); diff != "" {
				t.Fatalf("normalization not idempotent (-first +second):\n%s", diff)
			}
		})
	}
}

func TestNormalizeRelationshipReport(t *testing.T) {
	t.Parallel()

	raw := `{
		"nodes": [{"id": "روسيا", "name_en": "Russia", "type": "foreign_power"}],
		"edges": [
			{"source": "روسيا", "target": "النظام", "type": "alliance", "themes": ["military"], "article_count": 8},
			{"source": "روسيا", "target": "تركيا", "type": "negotiation"},
			"garbage"
		],
		"stats": {"total_articles": 420, "entity_pairs_found": 30}
	}`

	report, err := NormalizeRelationshipReport(raw)
	if err != nil {
		t.Fatalf("NormalizeRelationshipReport error: %v", err)
	}

	if len(report.Relationships) != 2 {
		t.Fatalf("expected 2 relationships, got %d", len(report.Relationships))
	}
	want := models.ReportStats{TotalArticles: 420, RelationshipsAnalyzed: 2, NodeCount: 1, EntityPairsFound: 30}
	if diff := cmp.Diff(want, report.Stats); diff != "" {
		t.Fatalf("unexpected stats (-want +got):\n%s", diff)
	}
}

func TestNormalizeRelationshipReportDerivesNodeCount(t *testing.T) {
	t.Parallel()

	report, err := NormalizeRelationshipReport([]byte(`[{"entity1": "a", "entity2": "b"}, {"entity1": "b", "entity2": "c"}]`))
	if err != nil {
		t.Fatalf("NormalizeRelationshipReport error: %v", err)
	}
	if report.Stats.NodeCount != 3 {
		t.Fatalf("expected 3 nodes, got %d", report.Stats.NodeCount)
	}
	if report.Nodes == nil {
		t.Fatalf("expected empty node list, got nil")
	}

	_, err = NormalizeRelationshipReport(`{"error": "No articles found discussing both"}`)
	var payloadErr *PayloadError
	if !errors.As(err, &payloadErr) {
		t.Fatalf("expected PayloadError, got %v", err)
	}
}

func TestNormalizeEntities(t *testing.T) {
	t.Parallel()

	keyed := `{
		"روسيا": {"name_en": "Russia", "type": "foreign_power"},
		"هتش": {"name_en": "HTS", "type": "Rebel", "aliases": ["هيئة تحرير الشام"]}
	}`

	got, err := NormalizeEntities(keyed)
	if err != nil {
		t.Fatalf("NormalizeEntities error: %v", err)
	}

	want := []models.EntityRef{
		{ID: "روسيا", NameEN: "Russia", Type: "foreign_power"},
		{ID: "هتش", NameEN: "HTS", Type: "rebel"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("NormalizeEntities() mismatch (-want +got):\n%s", diff)
	}

	listed, err := NormalizeEntities(`{"entities": [{"entity_id": "x"}]}`)
	if err != nil {
		t.Fatalf("NormalizeEntities(list) error: %v", err)
	}
	if len(listed) != 1 || listed[0].NameEN != "x" || listed[0].Type != DefaultEntityType {
		t.Fatalf("unexpected entities: %+v", listed)
	}
}
