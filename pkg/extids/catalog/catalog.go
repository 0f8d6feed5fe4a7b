// Package catalog loads external systems, URL templates and record types
// from a YAML file and applies them idempotently.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mikepea/extids/pkg/extids/errs"
	"github.com/mikepea/extids/pkg/extids/logger"
	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/records"
	"github.com/mikepea/extids/pkg/extids/systems"
	"github.com/mikepea/extids/pkg/extids/urltemplates"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// Catalog is the file layout
type Catalog struct {
	RecordTypes map[string]records.TableConfig `yaml:"record_types"`
	Systems     []System                       `yaml:"systems"`
}

// System is one external system entry
type System struct {
	Code             string   `yaml:"code"`
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	BaseURL          string   `yaml:"base_url"`
	IDFormat         string   `yaml:"id_format"`
	IDPrefix         string   `yaml:"id_prefix"`
	StoreURLTemplate string   `yaml:"store_url_template"`
	AdminURLTemplate string   `yaml:"admin_url_template"`
	Sequence         *int     `yaml:"sequence"`
	Active           *bool    `yaml:"active"`
	AppliesTo        []string `yaml:"applies_to"`
	URLs             []URL    `yaml:"urls"`
}

// URL is one template entry under a system
type URL struct {
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	Template   string `yaml:"template"`
	RecordType string `yaml:"record_type"`
	Sequence   *int   `yaml:"sequence"`
	Active     *bool  `yaml:"active"`
}

// Result counts what Apply changed
type Result struct {
	RecordTypes    int `json:"record_types"`
	SystemsCreated int `json:"systems_created"`
	SystemsUpdated int `json:"systems_updated"`
	URLsCreated    int `json:"urls_created"`
	URLsUpdated    int `json:"urls_updated"`
}

// Load reads a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog YAML and checks required fields
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks required fields and duplicate codes
func (c *Catalog) Validate() error {
	for name, tc := range c.RecordTypes {
		if tc.Table == "" {
			return &errs.ValidationError{Field: "record_types." + name + ".table", Message: "is required"}
		}
	}
	seen := make(map[string]bool, len(c.Systems))
	for i, s := range c.Systems {
		code := urltemplates.SanitizeCode(s.Code)
		if code == "" {
			return &errs.ValidationError{Field: fmt.Sprintf("systems[%d].code", i), Message: "is required"}
		}
		if s.Name == "" {
			return &errs.ValidationError{Field: fmt.Sprintf("systems[%d].name", i), Message: "is required"}
		}
		if seen[code] {
			return &errs.ValidationError{Field: fmt.Sprintf("systems[%d].code", i), Message: fmt.Sprintf("%q appears more than once", code)}
		}
		seen[code] = true
		for j, u := range s.URLs {
			if u.Code == "" || u.Template == "" {
				return &errs.ValidationError{Field: fmt.Sprintf("systems[%d].urls[%d]", i, j), Message: "code and template are required"}
			}
		}
	}
	return nil
}

// Applier writes a catalog through the services
type Applier struct {
	db       *gorm.DB
	registry *records.Registry
	systems  *systems.Service
	urls     *urltemplates.Service
	log      logger.Logger
}

// NewApplier creates an Applier. TableSources for record types read from db.
func NewApplier(db *gorm.DB, registry *records.Registry, sys *systems.Service, urls *urltemplates.Service, log logger.Logger) *Applier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Applier{db: db, registry: registry, systems: sys, urls: urls, log: log}
}

// RegisterRecordTypes adds a table-backed source for each record type
func (a *Applier) RegisterRecordTypes(c *Catalog) (int, error) {
	for name, tc := range c.RecordTypes {
		src, err := records.NewTableSource(a.db, tc)
		if err != nil {
			return 0, fmt.Errorf("record type %q: %w", name, err)
		}
		if err := a.registry.Register(name, src); err != nil {
			return 0, err
		}
	}
	return len(c.RecordTypes), nil
}

// Apply registers record types and upserts every system and template.
// Running it twice with the same catalog changes nothing the second time
// beyond rewriting identical values.
func (a *Applier) Apply(ctx context.Context, c *Catalog) (*Result, error) {
	var res Result
	n, err := a.RegisterRecordTypes(c)
	if err != nil {
		return nil, err
	}
	res.RecordTypes = n

	for _, entry := range c.Systems {
		system, created, err := a.applySystem(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("system %q: %w", entry.Code, err)
		}
		if created {
			res.SystemsCreated++
		} else {
			res.SystemsUpdated++
		}

		for _, u := range entry.URLs {
			_, created, err := a.urls.Upsert(ctx, urltemplates.UpsertInput{
				SystemID:   system.ID,
				Code:       u.Code,
				Name:       u.Name,
				Template:   u.Template,
				RecordType: u.RecordType,
				Sequence:   u.Sequence,
				Active:     u.Active,
			})
			if err != nil {
				return nil, fmt.Errorf("system %q url %q: %w", entry.Code, u.Code, err)
			}
			if created {
				res.URLsCreated++
			} else {
				res.URLsUpdated++
			}
		}
	}

	a.log.Info("catalog applied",
		logger.Int("record_types", res.RecordTypes),
		logger.Int("systems_created", res.SystemsCreated),
		logger.Int("systems_updated", res.SystemsUpdated),
		logger.Int("urls_created", res.URLsCreated),
		logger.Int("urls_updated", res.URLsUpdated),
	)
	return &res, nil
}

func (a *Applier) applySystem(ctx context.Context, entry System) (*models.ExternalSystem, bool, error) {
	code := urltemplates.SanitizeCode(entry.Code)
	existing, err := a.systems.ByCode(ctx, code, false)
	var unknown *errs.UnknownSystemError
	switch {
	case errors.As(err, &unknown):
		system, err := a.systems.Create(ctx, systems.Input{
			Code:             code,
			Name:             entry.Name,
			Description:      entry.Description,
			BaseURL:          entry.BaseURL,
			IDFormat:         entry.IDFormat,
			IDPrefix:         entry.IDPrefix,
			StoreURLTemplate: entry.StoreURLTemplate,
			AdminURLTemplate: entry.AdminURLTemplate,
			Sequence:         entry.Sequence,
			Active:           entry.Active,
			AppliesTo:        entry.AppliesTo,
		})
		return system, true, err
	case err != nil:
		return nil, false, err
	}

	appliesTo := entry.AppliesTo
	if appliesTo == nil {
		appliesTo = []string{}
	}
	system, err := a.systems.Update(ctx, existing.ID, systems.Patch{
		Name:             &entry.Name,
		Description:      &entry.Description,
		BaseURL:          &entry.BaseURL,
		IDFormat:         &entry.IDFormat,
		IDPrefix:         &entry.IDPrefix,
		StoreURLTemplate: &entry.StoreURLTemplate,
		AdminURLTemplate: &entry.AdminURLTemplate,
		Sequence:         entry.Sequence,
		AppliesTo:        &appliesTo,
	})
	if err != nil {
		return nil, false, err
	}
	if entry.Active != nil && *entry.Active != system.Active {
		if *entry.Active {
			system, err = a.systems.Unarchive(ctx, system.ID)
		} else {
			system, err = a.systems.Archive(ctx, system.ID)
		}
	}
	return system, false, err
}
