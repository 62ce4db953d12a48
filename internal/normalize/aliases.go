package normalize

// Aliases maps a canonical field name to the raw field names that may carry it,
// in priority order. The canonical name is always listed first.
type Aliases map[string][]string

var sentimentReportAliases = Aliases{
	"targets": {"targets", "results"},
	"error":   {"error"},
}

var targetAliases = Aliases{
	"name":              {"name", "target", "entity"},
	"sentiment":         {"sentiment", "label", "overall_sentiment"},
	"score":             {"score", "sentiment_score", "overall_score"},
	"trend":             {"trend", "trajectory"},
	"articles_analyzed": {"articles_analyzed", "article_count", "total_articles"},
	"mentions":          {"mentions", "mention_count", "total_mentions"},
	"periods_analyzed":  {"periods_analyzed", "period_count"},
	"periods":           {"periods", "timeline", "by_period"},
	"evidence":          {"evidence", "quotes", "examples"},
	"themes":            {"themes", "key_themes", "topics"},
	"reasoning":         {"reasoning", "analysis", "explanation"},
}

var periodAliases = Aliases{
	"period":        {"period", "month", "date_range"},
	"sentiment":     {"sentiment", "label"},
	"score":         {"score", "sentiment_score"},
	"article_count": {"article_count", "articles", "articles_analyzed"},
	"mention_count": {"mention_count", "mentions"},
	"themes":        {"themes", "key_themes", "topics"},
	"reasoning":     {"reasoning", "analysis", "explanation", "summary"},
	"evidence":      {"evidence", "quotes", "examples"},
}

var evidenceAliases = Aliases{
	"quote":     {"quote", "text", "content"},
	"source":    {"source", "title", "article"},
	"date":      {"date", "published", "timestamp"},
	"url":       {"url", "link", "source_url"},
	"sentiment": {"sentiment", "tone"},
	"period":    {"period"},
}

var relationshipReportAliases = Aliases{
	"relationships": {"relationships", "edges"},
	"stats":         {"stats", "statistics"},
	"nodes":         {"nodes", "entities"},
	"error":         {"error"},
}

var statsAliases = Aliases{
	"total_articles":         {"total_articles", "articles"},
	"relationships_analyzed": {"relationships_analyzed", "relationship_count"},
	"node_count":             {"node_count", "nodes"},
	"entity_pairs_found":     {"entity_pairs_found", "pairs"},
}

var edgeAliases = Aliases{
	"entity1":           {"entity1", "source", "from"},
	"entity1_en":        {"entity1_en", "source_en", "entity1_name"},
	"entity1_ar":        {"entity1_ar", "source_ar"},
	"entity2":           {"entity2", "target", "to"},
	"entity2_en":        {"entity2_en", "target_en", "entity2_name"},
	"entity2_ar":        {"entity2_ar", "target_ar"},
	"relationship_type": {"relationship_type", "type", "relation"},
	"direction":         {"direction"},
	"strength":          {"strength", "weight", "intensity"},
	"evolution":         {"evolution", "trend"},
	"article_count":     {"article_count", "articles", "count"},
	"description":       {"description", "summary"},
	"themes":            {"themes", "key_themes", "topics"},
	"evidence":          {"evidence", "quotes", "examples"},
	"timeline":          {"timeline", "periods", "history"},
}

var timelineAliases = Aliases{
	"period":            {"period", "month"},
	"relationship_type": {"relationship_type", "type"},
	"strength":          {"strength", "weight"},
	"description":       {"description", "summary"},
	"article_count":     {"article_count", "articles"},
}

var entityAliases = Aliases{
	"id":          {"id", "entity_id", "key"},
	"name_en":     {"name_en", "english_name", "name"},
	"name_ar":     {"name_ar", "arabic_name", "native_name"},
	"type":        {"type", "entity_type", "category"},
	"active_from": {"active_from", "start_date", "from"},
	"active_to":   {"active_to", "end_date", "to"},
}

var entityListAliases = Aliases{
	"entities": {"entities", "nodes"},
}
