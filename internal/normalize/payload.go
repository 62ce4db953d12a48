// Package normalize turns the loosely shaped JSON returned by the analysis
// service into the canonical report types of package models.
//
// Field lookups go through one alias table per record type: the canonical
// name first, then the historical names earlier versions of the service
// emitted. Missing or mistyped fields degrade to documented defaults; only a
// top-level payload that cannot be decoded at all, or one that carries an
// explicit error, is reported to the caller.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sydialogue/dashboard/internal/models"
)

// ErrUndecodable reports a payload that is not JSON, or not a JSON shape a
// report can be read from. Callers render it as "no data".
var ErrUndecodable = errors.New("payload is not decodable JSON")

// PayloadError is an error message the analysis service embedded in an
// otherwise well-formed payload. Message is shown to the user verbatim.
type PayloadError struct {
	Message string
}

func (e *PayloadError) Error() string {
	return e.Message
}

const maxNesting = 2

func decode(raw any) (any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty payload", ErrUndecodable)
	case json.RawMessage:
		return decodeText(string(v), 0)
	case []byte:
		return decodeText(string(v), 0)
	case string:
		return decodeText(v, 0)
	default:
		return v, nil
	}
}

// decodeText decodes s, falling back to stripping model wrapping when s is
// not JSON as sent. A JSON string that itself holds JSON is decoded again,
// up to maxNesting levels.
func decodeText(s string, depth int) (any, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrUndecodable)
	}

	var out any
	err := json.Unmarshal([]byte(text), &out)
	if err != nil {
		out, err = decodeWrapped(text)
	}
	if err != nil {
		return nil, err
	}

	if inner, ok := out.(string); ok && depth < maxNesting {
		return decodeText(inner, depth+1)
	}
	return out, nil
}

// decodeWrapped decodes model output that carries a reasoning block, code
// fences or prose around its JSON.
func decodeWrapped(text string) (any, error) {
	unwrapped := unwrapModelOutput(text)
	if unwrapped == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrUndecodable)
	}

	var out any
	err := json.Unmarshal([]byte(unwrapped), &out)
	if err == nil {
		return out, nil
	}
	if obj, ok := extractJSONObject(unwrapped); ok && obj != unwrapped {
		out = nil
		if retryErr := json.Unmarshal([]byte(obj), &out); retryErr == nil {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
}

func embeddedError(fields map[string]any) error {
	v, ok := fields["error"]
	if !ok || v == nil {
		return nil
	}

	var msg string
	switch e := v.(type) {
	case string:
		msg = strings.TrimSpace(e)
	case bool:
		if !e {
			return nil
		}
		msg = "Analysis failed"
	case map[string]any:
		if m, ok := e["message"].(string); ok {
			msg = strings.TrimSpace(m)
		}
	default:
		msg = fmt.Sprint(e)
	}

	if msg == "" {
		return nil
	}
	return &PayloadError{Message: msg}
}

// ParseSentimentPayload reads a sentiment report from a JSON string, bytes,
// or an already decoded value. It returns ErrUndecodable when nothing can be
// rendered and a *PayloadError when the payload carries an error field.
func ParseSentimentPayload(raw any) (*models.SentimentReport, error) {
	decoded, err := decode(raw)
	if err != nil {
		return nil, err
	}

	if list, ok := decoded.([]any); ok {
		return sentimentFromList(list), nil
	}

	fields := asObject(decoded)
	if fields == nil {
		return nil, fmt.Errorf("%w: expected an object, got %T", ErrUndecodable, decoded)
	}
	if err := embeddedError(fields); err != nil {
		return nil, err
	}

	// Whole API responses wrap the report in sentiment_analysis.
	_, hasTargets := fields["targets"]
	if inner, ok := fields["sentiment_analysis"]; ok && !hasTargets {
		if inner == nil {
			return nil, fmt.Errorf("%w: empty sentiment_analysis", ErrUndecodable)
		}
		return ParseSentimentPayload(inner)
	}

	rec := record{fields: fields, aliases: sentimentReportAliases}
	targets, ok := rec.value("targets")
	if !ok {
		return sentimentFromMap(fields, true), nil
	}

	switch t := targets.(type) {
	case map[string]any:
		return sentimentFromMap(t, false), nil
	case []any:
		return sentimentFromList(t), nil
	}
	return newSentimentReport(), nil
}

func newSentimentReport() *models.SentimentReport {
	return &models.SentimentReport{
		Targets: map[string]models.TargetSentiment{},
		Order:   []string{},
	}
}

// sentimentFromMap builds a report from name -> target. When implicit is set
// the map is the top-level object and only object values are targets.
func sentimentFromMap(targets map[string]any, implicit bool) *models.SentimentReport {
	report := newSentimentReport()
	for name, raw := range targets {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if implicit && asObject(raw) == nil {
			continue
		}
		report.Targets[name] = NormalizeTarget(raw)
	}
	report.Order = sortedKeys(report.Targets)
	return report
}

func sentimentFromList(items []any) *models.SentimentReport {
	report := newSentimentReport()
	for _, item := range items {
		rec := newRecord(item, targetAliases)
		name := rec.str("name", "")
		if name == "" {
			continue
		}
		report.Targets[name] = NormalizeTarget(item)
	}
	report.Order = sortedKeys(report.Targets)
	return report
}

func sortedKeys(m map[string]models.TargetSentiment) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NormalizeRelationshipReport reads a relationship report with the same
// error discipline as ParseSentimentPayload. A bare array is read as the
// relationship list.
func NormalizeRelationshipReport(raw any) (*models.RelationshipReport, error) {
	decoded, err := decode(raw)
	if err != nil {
		return nil, err
	}

	if list, ok := decoded.([]any); ok {
		return buildRelationshipReport(list, nil, nil), nil
	}

	fields := asObject(decoded)
	if fields == nil {
		return nil, fmt.Errorf("%w: expected an object, got %T", ErrUndecodable, decoded)
	}
	if err := embeddedError(fields); err != nil {
		return nil, err
	}

	rec := record{fields: fields, aliases: relationshipReportAliases}
	return buildRelationshipReport(rec.list("relationships"), rec.object("stats"), rec.list("nodes")), nil
}

func buildRelationshipReport(rawEdges []any, rawStats map[string]any, rawNodes []any) *models.RelationshipReport {
	report := &models.RelationshipReport{
		Relationships: make([]models.RelationshipEdge, 0, len(rawEdges)),
		Nodes:         make([]models.EntityRef, 0, len(rawNodes)),
	}

	for _, raw := range rawEdges {
		if asObject(raw) == nil {
			continue
		}
		report.Relationships = append(report.Relationships, NormalizeRelationshipEdge(raw))
	}
	for _, raw := range rawNodes {
		if asObject(raw) == nil {
			continue
		}
		report.Nodes = append(report.Nodes, NormalizeEntity(raw))
	}

	stats := record{fields: rawStats, aliases: statsAliases}
	report.Stats.TotalArticles, _ = stats.count("total_articles")
	report.Stats.EntityPairsFound, _ = stats.count("entity_pairs_found")

	if n, ok := stats.count("relationships_analyzed"); ok {
		report.Stats.RelationshipsAnalyzed = n
	} else {
		report.Stats.RelationshipsAnalyzed = len(report.Relationships)
	}

	if n, ok := stats.count("node_count"); ok {
		report.Stats.NodeCount = n
	} else if len(report.Nodes) > 0 {
		report.Stats.NodeCount = len(report.Nodes)
	} else {
		report.Stats.NodeCount = len(Endpoints(report.Relationships))
	}

	return report
}

// Endpoints returns the distinct entity identifiers the edges connect, sorted.
func Endpoints(edges []models.RelationshipEdge) []string {
	seen := map[string]struct{}{}
	for _, e := range edges {
		if e.Entity1 != "" {
			seen[e.Entity1] = struct{}{}
		}
		if e.Entity2 != "" {
			seen[e.Entity2] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// NormalizeEntities reads an entity list. It accepts an array, an object
// wrapping the array under entities or nodes, or an object keyed by entity id.
func NormalizeEntities(raw any) ([]models.EntityRef, error) {
	decoded, err := decode(raw)
	if err != nil {
		return nil, err
	}

	if list, ok := decoded.([]any); ok {
		return entitiesFromList(list), nil
	}

	fields := asObject(decoded)
	if fields == nil {
		return nil, fmt.Errorf("%w: expected an array or object, got %T", ErrUndecodable, decoded)
	}
	if err := embeddedError(fields); err != nil {
		return nil, err
	}

	rec := record{fields: fields, aliases: entityListAliases}
	if list := rec.list("entities"); list != nil {
		return entitiesFromList(list), nil
	}

	out := []models.EntityRef{}
	for id, v := range fields {
		obj := asObject(v)
		if obj == nil {
			continue
		}
		withID := make(map[string]any, len(obj)+1)
		for k, val := range obj {
			withID[k] = val
		}
		if _, ok := withID["id"]; !ok {
			withID["id"] = id
		}
		out = append(out, NormalizeEntity(withID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func entitiesFromList(items []any) []models.EntityRef {
	out := make([]models.EntityRef, 0, len(items))
	for _, item := range items {
		if asObject(item) == nil {
			continue
		}
		out = append(out, NormalizeEntity(item))
	}
	return out
}
