package normalize

import (
	"strings"

	"github.com/sydialogue/dashboard/internal/models"
)

const (
	DefaultRelationshipType = "neutral"
	DefaultDirection        = "mutual"
	DefaultEvolution        = "stable"
	DefaultStrength         = 0.5
	DefaultEntityType       = "unknown"
)

var relationshipScores = map[string]float64{
	"alliance":    1.0,
	"support":     0.7,
	"cooperation": 0.5,
	"negotiation": 0.2,
	"neutral":     0.0,
	"tension":     -0.3,
	"opposition":  -0.6,
	"conflict":    -1.0,
}

var (
	relationshipVocabulary = []string{
		"alliance", "support", "cooperation", "negotiation",
		"neutral", "tension", "opposition", "conflict",
	}
	directionVocabulary = []string{"mutual", "e1_to_e2", "e2_to_e1"}
	evolutionVocabulary = []string{"stable", "improving", "deteriorating", "fluctuating", "declining"}
)

// RelationshipScore places a relationship type on a scale from -1 (conflict)
// to 1 (alliance). Unknown labels score 0.
func RelationshipScore(label string) float64 {
	return relationshipScores[strings.ToLower(strings.TrimSpace(label))]
}

// NormalizeRelationshipEdge reads one relationship. Unknown relationship
// types pass through unchanged so the UI can fall back to a neutral style.
func NormalizeRelationshipEdge(raw any) models.RelationshipEdge {
	rec := newRecord(raw, edgeAliases)

	e := models.RelationshipEdge{
		RelationshipType: canonicalLabel(rec.str("relationship_type", DefaultRelationshipType), relationshipVocabulary),
		Direction:        direction(rec.str("direction", DefaultDirection)),
		Strength:         DefaultStrength,
		Evolution:        canonicalLabel(rec.str("evolution", DefaultEvolution), evolutionVocabulary),
		Description:      rec.str("description", PlaceholderDescription),
		Themes:           rec.strings("themes"),
		Evidence:         evidenceList(rec.list("evidence")),
		Timeline:         timeline(rec.list("timeline")),
	}

	e.Entity1, e.Entity1EN, e.Entity1AR = endpoint(rec, "entity1")
	e.Entity2, e.Entity2EN, e.Entity2AR = endpoint(rec, "entity2")

	if s := rec.float("strength"); s != nil {
		e.Strength = clamp(*s, 0, 1)
	}
	e.ArticleCount, _ = rec.count("article_count")

	return e
}

// endpoint reads an edge endpoint, which is either an identifier with
// sibling name fields or an embedded entity object.
func endpoint(rec record, field string) (id, nameEN, nameAR string) {
	nameEN = rec.str(field+"_en", "")
	nameAR = rec.str(field+"_ar", "")

	v, ok := rec.value(field)
	if !ok {
		return "", nameEN, nameAR
	}

	if obj := asObject(v); obj != nil {
		ent := NormalizeEntity(obj)
		if nameEN == "" && ent.NameEN != ent.ID {
			nameEN = ent.NameEN
		}
		if nameAR == "" {
			nameAR = ent.NameAR
		}
		return ent.ID, nameEN, nameAR
	}

	id, _ = toText(v)
	return id, nameEN, nameAR
}

func direction(raw string) string {
	d := canonicalLabel(raw, directionVocabulary)
	for _, known := range directionVocabulary {
		if d == known {
			return d
		}
	}
	return DefaultDirection
}

func timeline(items []any) []models.RelationshipPeriod {
	out := make([]models.RelationshipPeriod, 0, len(items))
	for _, item := range items {
		rec := newRecord(item, timelineAliases)
		if rec.empty() {
			continue
		}

		p := models.RelationshipPeriod{
			Period:           rec.str("period", ""),
			RelationshipType: canonicalLabel(rec.str("relationship_type", DefaultRelationshipType), relationshipVocabulary),
			Description:      rec.str("description", ""),
		}
		if s := rec.float("strength"); s != nil {
			v := clamp(*s, 0, 1)
			p.Strength = &v
		}
		p.ArticleCount, _ = rec.count("article_count")
		out = append(out, p)
	}
	return out
}

// NormalizeEntity reads one entity reference. The English name falls back to
// the identifier and the type to "unknown".
func NormalizeEntity(raw any) models.EntityRef {
	rec := newRecord(raw, entityAliases)

	ent := models.EntityRef{
		ID:         rec.str("id", ""),
		NameAR:     rec.str("name_ar", ""),
		Type:       strings.ToLower(rec.str("type", DefaultEntityType)),
		ActiveFrom: rec.str("active_from", ""),
		ActiveTo:   rec.str("active_to", ""),
	}
	ent.NameEN = rec.str("name_en", ent.ID)
	if ent.ID == "" {
		ent.ID = ent.NameEN
	}
	return ent
}

// EdgeWire renders edge in the minimal wire shape the analysis service uses.
// NormalizeRelationshipEdge(EdgeWire(e)) yields e again.
func EdgeWire(e models.RelationshipEdge) map[string]any {
	wire := map[string]any{
		"entity1":           e.Entity1,
		"entity2":           e.Entity2,
		"relationship_type": e.RelationshipType,
		"direction":         e.Direction,
		"strength":          e.Strength,
		"evolution":         e.Evolution,
		"article_count":     e.ArticleCount,
		"description":       e.Description,
	}
	setIfPresent(wire, "entity1_en", e.Entity1EN)
	setIfPresent(wire, "entity1_ar", e.Entity1AR)
	setIfPresent(wire, "entity2_en", e.Entity2EN)
	setIfPresent(wire, "entity2_ar", e.Entity2AR)

	themes := make([]any, 0, len(e.Themes))
	for _, t := range e.Themes {
		themes = append(themes, t)
	}
	wire["themes"] = themes

	evidence := make([]any, 0, len(e.Evidence))
	for _, q := range e.Evidence {
		evidence = append(evidence, EvidenceWire(q))
	}
	wire["evidence"] = evidence

	periods := make([]any, 0, len(e.Timeline))
	for _, p := range e.Timeline {
		item := map[string]any{
			"period":            p.Period,
			"relationship_type": p.RelationshipType,
			"description":       p.Description,
			"article_count":     p.ArticleCount,
		}
		if p.Strength != nil {
			item["strength"] = *p.Strength
		}
		periods = append(periods, item)
	}
	wire["timeline"] = periods

	return wire
}

// EvidenceWire renders q in the wire shape of an evidence item.
func EvidenceWire(q models.EvidenceQuote) map[string]any {
	wire := map[string]any{
		"quote":  q.Quote,
		"source": q.Source,
	}
	setIfPresent(wire, "date", q.Date)
	setIfPresent(wire, "url", q.URL)
	setIfPresent(wire, "sentiment", q.Sentiment)
	setIfPresent(wire, "period", q.Period)
	return wire
}

func setIfPresent(m map[string]any, key, value string) {
	if value != "" {
		m[key] = value
	}
}
