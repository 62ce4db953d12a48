// Package builder projects a relationship report onto a property graph.
package builder

import (
	"sort"
	"strings"

	"github.com/sydialogue/dashboard/internal/models"
	"github.com/sydialogue/dashboard/internal/normalize"
)

type Entity struct {
	ID     string
	NameEN string
	NameAR string
	Type   string
}

type Relation struct {
	Subject      string
	Predicate    string
	Object       string
	Direction    string
	Strength     float64
	Score        float64
	Evolution    string
	ArticleCount int
	Description  string
	Themes       []string
	SourceURLs   []string
}

type Graph struct {
	Entities  []Entity
	Relations []Relation
}

func (g Graph) Empty() bool {
	return len(g.Entities) == 0 && len(g.Relations) == 0
}

// Build returns one entity per node or edge endpoint and one relation per
// edge. Edges reported e2_to_e1 are stored pointing from entity2 to entity1.
func Build(report models.RelationshipReport) Graph {
	byID := make(map[string]Entity, len(report.Nodes))
	for _, n := range report.Nodes {
		if n.ID == "" {
			continue
		}
		byID[n.ID] = Entity{ID: n.ID, NameEN: n.NameEN, NameAR: n.NameAR, Type: n.Type}
	}

	relations := make([]Relation, 0, len(report.Relationships))
	for _, e := range report.Relationships {
		if e.Entity1 == "" || e.Entity2 == "" {
			continue
		}
		addEndpoint(byID, e.Entity1, e.Entity1EN, e.Entity1AR)
		addEndpoint(byID, e.Entity2, e.Entity2EN, e.Entity2AR)

		subject, object := e.Entity1, e.Entity2
		if e.Direction == "e2_to_e1" {
			subject, object = object, subject
		}
		relations = append(relations, Relation{
			Subject:      subject,
			Predicate:    Predicate(e.RelationshipType),
			Object:       object,
			Direction:    e.Direction,
			Strength:     e.Strength,
			Score:        normalize.RelationshipScore(e.RelationshipType),
			Evolution:    e.Evolution,
			ArticleCount: e.ArticleCount,
			Description:  e.Description,
			Themes:       e.Themes,
			SourceURLs:   sourceURLs(e.Evidence),
		})
	}

	entities := make([]Entity, 0, len(byID))
	for _, ent := range byID {
		entities = append(entities, ent)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	return Graph{Entities: entities, Relations: relations}
}

// Predicate turns a relationship type into a relation label, "tension"
// becoming "TENSION".
func Predicate(relationshipType string) string {
	p := strings.ToUpper(strings.TrimSpace(relationshipType))
	if p == "" {
		return strings.ToUpper(normalize.DefaultRelationshipType)
	}
	return p
}

func addEndpoint(byID map[string]Entity, id, nameEN, nameAR string) {
	ent, ok := byID[id]
	if !ok {
		ent = Entity{ID: id, Type: normalize.DefaultEntityType}
	}
	if ent.NameEN == "" {
		ent.NameEN = nameEN
	}
	if ent.NameAR == "" {
		ent.NameAR = nameAR
	}
	if ent.NameEN == "" {
		ent.NameEN = id
	}
	if ent.Type == "" {
		ent.Type = normalize.DefaultEntityType
	}
	byID[id] = ent
}

func sourceURLs(evidence []models.EvidenceQuote) []string {
	seen := map[string]struct{}{}
	urls := []string{}
	for _, q := range evidence {
		if q.URL == "" {
			continue
		}
		if _, dup := seen[q.URL]; dup {
			continue
		}
		seen[q.URL] = struct{}{}
		urls = append(urls, q.URL)
	}
	return urls
}
