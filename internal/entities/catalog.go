// Package entities holds the catalog of tracked actors: their Arabic
// identifiers, English display names, types and the aliases articles use for
// them.
package entities

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sydialogue/dashboard/internal/models"
)

// Entity is one tracked actor. ID is the Arabic name the analysis service
// keys relationships by.
type Entity struct {
	ID      string   `yaml:"id" json:"id"`
	NameEN  string   `yaml:"name_en" json:"name_en"`
	Type    string   `yaml:"type" json:"type"`
	Aliases []string `yaml:"aliases" json:"aliases"`
}

type Catalog struct {
	byID map[string]Entity
	ids  []string
}

var defaultEntities = []Entity{
	{ID: "النظام", NameEN: "Assad Regime", Type: "government", Aliases: []string{"الأسد", "بشار", "نظام الأسد", "النظام السوري"}},
	{ID: "هتش", NameEN: "HTS", Type: "rebel", Aliases: []string{"هيئة تحرير الشام", "تحرير الشام", "الجولاني", "الشرع", "أحمد الشرع"}},
	{ID: "المعارضة", NameEN: "Opposition", Type: "rebel", Aliases: []string{"الثوار", "الفصائل", "الجيش الحر", "فصائل المعارضة"}},
	{ID: "قسد", NameEN: "SDF", Type: "rebel", Aliases: []string{"قوات سوريا الديمقراطية", "الأكراد", "الكرد", "الإدارة الذاتية", "pyd", "ypg"}},
	{ID: "داعش", NameEN: "ISIS", Type: "terrorist", Aliases: []string{"الدولة الإسلامية", "تنظيم الدولة"}},
	{ID: "روسيا", NameEN: "Russia", Type: "foreign_power", Aliases: []string{"الروس", "موسكو", "بوتين", "الروسي"}},
	{ID: "أمريكا", NameEN: "USA", Type: "foreign_power", Aliases: []string{"الولايات المتحدة", "واشنطن", "الأمريكي", "الإدارة الأمريكية"}},
	{ID: "إيران", NameEN: "Iran", Type: "foreign_power", Aliases: []string{"طهران", "الإيراني", "الحرس الثوري", "حزب الله"}},
	{ID: "تركيا", NameEN: "Turkey", Type: "foreign_power", Aliases: []string{"أنقرة", "أردوغان", "التركي"}},
	{ID: "إسرائيل", NameEN: "Israel", Type: "foreign_power", Aliases: []string{"الاحتلال", "الإسرائيلي", "تل أبيب", "الصهيوني"}},
	{ID: "حزب الله", NameEN: "Hezbollah", Type: "militia", Aliases: []string{"حزب الله اللبناني"}},
	{ID: "الميليشيات", NameEN: "Pro-Iran Militias", Type: "militia", Aliases: []string{"الميليشيات الإيرانية", "الميليشيات الشيعية"}},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(defaultEntities)
}

// New builds a catalog from list. Later entries replace earlier ones with the
// same ID.
func New(list []Entity) *Catalog {
	c := &Catalog{byID: make(map[string]Entity, len(list))}
	for _, e := range list {
		c.put(e)
	}
	return c
}

func (c *Catalog) put(e Entity) {
	e.ID = strings.TrimSpace(e.ID)
	if e.ID == "" {
		return
	}
	if _, exists := c.byID[e.ID]; !exists {
		c.ids = append(c.ids, e.ID)
		sort.Strings(c.ids)
	}
	if e.NameEN == "" {
		e.NameEN = e.ID
	}
	if e.Type == "" {
		e.Type = "unknown"
	}
	c.byID[e.ID] = e
}

type catalogFile struct {
	// Replace drops the built-in entities instead of merging over them.
	Replace  bool     `yaml:"replace"`
	Entities []Entity `yaml:"entities"`
}

// LoadCatalog reads YAML entity overrides from path and merges them over the
// built-in catalog. An empty path yields the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read entity catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse entity catalog %s: %w", path, err)
	}

	c := Default()
	if file.Replace {
		c = New(nil)
	}
	for _, e := range file.Entities {
		if existing, ok := c.byID[strings.TrimSpace(e.ID)]; ok {
			e = mergeEntity(existing, e)
		}
		c.put(e)
	}
	return c, nil
}

func mergeEntity(base, override Entity) Entity {
	if override.NameEN != "" {
		base.NameEN = override.NameEN
	}
	if override.Type != "" {
		base.Type = override.Type
	}
	if len(override.Aliases) > 0 {
		base.Aliases = override.Aliases
	}
	return base
}

func (c *Catalog) Lookup(id string) (Entity, bool) {
	e, ok := c.byID[strings.TrimSpace(id)]
	return e, ok
}

// All returns the catalog entities ordered by ID.
func (c *Catalog) All() []Entity {
	out := make([]Entity, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// Refs returns the catalog as entity references, the shape the analysis
// service lists entities in.
func (c *Catalog) Refs() []models.EntityRef {
	out := make([]models.EntityRef, 0, len(c.ids))
	for _, e := range c.All() {
		out = append(out, models.EntityRef{ID: e.ID, NameEN: e.NameEN, NameAR: e.ID, Type: e.Type})
	}
	return out
}

// FindInText returns the IDs of entities whose ID or any alias occurs in
// text, sorted. Latin aliases match case-insensitively.
func (c *Catalog) FindInText(text string) []string {
	found := []string{}
	if strings.TrimSpace(text) == "" {
		return found
	}

	lower := strings.ToLower(text)
	for _, id := range c.ids {
		e := c.byID[id]
		if strings.Contains(text, id) {
			found = append(found, id)
			continue
		}
		for _, alias := range e.Aliases {
			if alias == "" {
				continue
			}
			if strings.Contains(lower, strings.ToLower(alias)) {
				found = append(found, id)
				break
			}
		}
	}
	return found
}
