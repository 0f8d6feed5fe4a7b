package records

import (
	"context"
	"fmt"
	"regexp"

	"gorm.io/gorm"
)

var identRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// TableSource reads records of one type from a table in the host database
type TableSource struct {
	db            *gorm.DB
	table         string
	idColumn      string
	nameColumn    string
	companyColumn string
}

// TableConfig names the table and columns backing a record type
type TableConfig struct {
	Table         string `yaml:"table"`
	IDColumn      string `yaml:"id_column"`
	NameColumn    string `yaml:"name_column"`
	CompanyColumn string `yaml:"company_column"`
}

// NewTableSource validates the identifiers in cfg and returns a source.
// IDColumn defaults to "id" and NameColumn to "name"; CompanyColumn is optional.
func NewTableSource(db *gorm.DB, cfg TableConfig) (*TableSource, error) {
	if cfg.IDColumn == "" {
		cfg.IDColumn = "id"
	}
	if cfg.NameColumn == "" {
		cfg.NameColumn = "name"
	}
	for _, ident := range []string{cfg.Table, cfg.IDColumn, cfg.NameColumn} {
		if !identRegex.MatchString(ident) {
			return nil, fmt.Errorf("invalid identifier %q", ident)
		}
	}
	if cfg.CompanyColumn != "" && !identRegex.MatchString(cfg.CompanyColumn) {
		return nil, fmt.Errorf("invalid identifier %q", cfg.CompanyColumn)
	}
	return &TableSource{
		db:            db,
		table:         cfg.Table,
		idColumn:      cfg.IDColumn,
		nameColumn:    cfg.NameColumn,
		companyColumn: cfg.CompanyColumn,
	}, nil
}

type tableRow struct {
	ID          uint
	DisplayName string
	CompanyID   *uint
}

func (s *TableSource) Lookup(ctx context.Context, ids []uint) (map[uint]Record, error) {
	out := make(map[uint]Record, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	company := "NULL"
	if s.companyColumn != "" {
		company = fmt.Sprintf("%q", s.companyColumn)
	}
	sel := fmt.Sprintf("%q AS id, %q AS display_name, %s AS company_id", s.idColumn, s.nameColumn, company)

	var rows []tableRow
	err := s.db.WithContext(ctx).
		Table(s.table).
		Select(sel).
		Where(fmt.Sprintf("%q IN ?", s.idColumn), ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = Record{ID: row.ID, DisplayName: row.DisplayName, CompanyID: row.CompanyID}
	}
	return out, nil
}
