package entities

import (
	"strings"

	"github.com/sydialogue/dashboard/internal/models"
	"github.com/sydialogue/dashboard/internal/normalize"
)

// Enrich completes a normalized relationship report from the catalog: missing
// endpoints named in the edge text, empty English and Arabic names on edges,
// nodes the service omitted, node names and types it left unknown, and
// evidence period tags derivable from dates.
func (c *Catalog) Enrich(report *models.RelationshipReport) {
	if report == nil {
		return
	}

	for i := range report.Relationships {
		e := &report.Relationships[i]
		c.fillEndpoints(e)
		e.Entity1EN, e.Entity1AR = c.names(e.Entity1, e.Entity1EN, e.Entity1AR)
		e.Entity2EN, e.Entity2AR = c.names(e.Entity2, e.Entity2EN, e.Entity2AR)
		tagEvidence(e.Evidence)
	}

	if len(report.Nodes) == 0 {
		report.Nodes = c.nodesFor(report.Relationships)
		if report.Stats.NodeCount == 0 {
			report.Stats.NodeCount = len(report.Nodes)
		}
		return
	}

	for i := range report.Nodes {
		c.completeNode(&report.Nodes[i])
	}
}

// EnrichSentiment tags evidence quotes that carry a date but no period.
func EnrichSentiment(report *models.SentimentReport) {
	if report == nil {
		return
	}
	for name, t := range report.Targets {
		tagEvidence(t.Evidence)
		for i := range t.Periods {
			tagEvidence(t.Periods[i].Evidence)
		}
		report.Targets[name] = t
	}
}

// fillEndpoints assigns empty edge endpoints from the catalog entities the
// edge description and evidence quotes mention.
func (c *Catalog) fillEndpoints(e *models.RelationshipEdge) {
	if e.Entity1 != "" && e.Entity2 != "" {
		return
	}

	texts := make([]string, 0, len(e.Evidence)+1)
	texts = append(texts, e.Description)
	for _, q := range e.Evidence {
		texts = append(texts, q.Quote)
	}

	for _, id := range c.FindInText(strings.Join(texts, "\n")) {
		switch {
		case id == e.Entity1 || id == e.Entity2:
		case e.Entity1 == "":
			e.Entity1 = id
		case e.Entity2 == "":
			e.Entity2 = id
		}
	}
}

func tagEvidence(quotes []models.EvidenceQuote) {
	for i := range quotes {
		if quotes[i].Period != "" || quotes[i].Date == "" {
			continue
		}
		if p := ParsePeriod(quotes[i].Date); p != UnknownPeriod {
			quotes[i].Period = p
		}
	}
}

func (c *Catalog) names(id, nameEN, nameAR string) (string, string) {
	ent, ok := c.Lookup(id)
	if !ok {
		return nameEN, nameAR
	}
	if nameEN == "" {
		nameEN = ent.NameEN
	}
	if nameAR == "" {
		nameAR = ent.ID
	}
	return nameEN, nameAR
}

func (c *Catalog) nodesFor(edges []models.RelationshipEdge) []models.EntityRef {
	english := map[string]string{}
	for _, e := range edges {
		if e.Entity1EN != "" {
			english[e.Entity1] = e.Entity1EN
		}
		if e.Entity2EN != "" {
			english[e.Entity2] = e.Entity2EN
		}
	}

	ids := normalize.Endpoints(edges)
	nodes := make([]models.EntityRef, 0, len(ids))
	for _, id := range ids {
		node := models.EntityRef{ID: id, NameEN: english[id]}
		c.completeNode(&node)
		nodes = append(nodes, node)
	}
	return nodes
}

func (c *Catalog) completeNode(node *models.EntityRef) {
	ent, known := c.Lookup(node.ID)
	if known {
		if node.NameEN == "" || node.NameEN == node.ID {
			node.NameEN = ent.NameEN
		}
		if node.NameAR == "" {
			node.NameAR = ent.ID
		}
		if node.Type == "" || node.Type == normalize.DefaultEntityType {
			node.Type = ent.Type
		}
	}
	if node.NameEN == "" {
		node.NameEN = node.ID
	}
	if node.Type == "" {
		node.Type = normalize.DefaultEntityType
	}
}
