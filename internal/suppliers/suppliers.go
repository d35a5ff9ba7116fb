// Package suppliers provides the supplier directory and groups items with the
// suppliers that serve their category.
package suppliers

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

// Seed file columns.
const (
	ColumnName     = "Supplier Name"
	ColumnCategory = "Category"
	ColumnEmail    = "email"
)

type Supplier struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Category string `json:"category" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

var validate = validator.New()

// Validate checks required fields and the email address. An empty ID is filled from Name.
func (s *Supplier) Validate() error {
	s.Name = strings.TrimSpace(s.Name)
	s.Category = strings.TrimSpace(s.Category)
	s.Email = strings.TrimSpace(s.Email)
	if strings.TrimSpace(s.ID) == "" {
		s.ID = s.Name
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid supplier %q: %w", s.Name, err)
	}
	return nil
}

// Directory finds suppliers by category. An empty category list returns all suppliers.
type Directory interface {
	ByCategories(ctx context.Context, categories []string) ([]Supplier, error)
}

// StaticDirectory is an in-memory directory, typically loaded from the seed CSV.
type StaticDirectory struct {
	suppliers []Supplier
}

func NewStaticDirectory(suppliers []Supplier) *StaticDirectory {
	cp := make([]Supplier, len(suppliers))
	copy(cp, suppliers)
	return &StaticDirectory{suppliers: cp}
}

func (d *StaticDirectory) ByCategories(_ context.Context, categories []string) ([]Supplier, error) {
	return FilterByCategories(d.suppliers, categories), nil
}

// All returns every supplier in load order.
func (d *StaticDirectory) All() []Supplier {
	cp := make([]Supplier, len(d.suppliers))
	copy(cp, d.suppliers)
	return cp
}

// FilterByCategories keeps suppliers whose category is listed, in input order.
func FilterByCategories(in []Supplier, categories []string) []Supplier {
	if len(categories) == 0 {
		cp := make([]Supplier, len(in))
		copy(cp, in)
		return cp
	}
	wanted := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		wanted[c] = struct{}{}
	}
	var out []Supplier
	for _, s := range in {
		if _, ok := wanted[s.Category]; ok {
			out = append(out, s)
		}
	}
	return out
}

// LoadSeedFile reads the seed CSV. A missing file yields an empty directory.
func LoadSeedFile(path string) ([]Supplier, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open supplier seed %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	suppliers, err := ParseSeed(f)
	if err != nil {
		return nil, fmt.Errorf("supplier seed %s: %w", path, err)
	}
	return suppliers, nil
}

// ParseSeed reads CSV rows with "Supplier Name", "Category" and "email"
// columns. The supplier id is its name. Rows with no name are skipped.
func ParseSeed(r io.Reader) ([]Supplier, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))] = i
	}
	for _, col := range []string{ColumnName, ColumnCategory, ColumnEmail} {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	field := func(record []string, col string) string {
		i := index[col]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var out []Supplier
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		name := field(record, ColumnName)
		if name == "" {
			continue
		}
		out = append(out, Supplier{
			ID:       name,
			Name:     name,
			Category: field(record, ColumnCategory),
			Email:    field(record, ColumnEmail),
		})
	}
	return out, nil
}

// Group is one category with its items and candidate suppliers.
type Group struct {
	Category  string        `json:"category"`
	Items     []*quote.Item `json:"items"`
	Suppliers []Supplier    `json:"suppliers"`
}

// Categories returns the sorted distinct categories of the items.
func Categories(items []*quote.Item) []string {
	seen := make(map[string]struct{})
	for _, item := range items {
		if item == nil {
			continue
		}
		seen[item.CategoryOrDefault()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// GroupByCategory buckets items by category, sorted by category name, and
// attaches the suppliers serving each one. Categories without suppliers are kept.
func GroupByCategory(items []*quote.Item, suppliers []Supplier) []Group {
	byCategory := make(map[string]*Group)
	for _, item := range items {
		if item == nil {
			continue
		}
		c := item.CategoryOrDefault()
		g, ok := byCategory[c]
		if !ok {
			g = &Group{Category: c}
			byCategory[c] = g
		}
		g.Items = append(g.Items, item)
	}

	for _, s := range suppliers {
		if g, ok := byCategory[s.Category]; ok {
			g.Suppliers = append(g.Suppliers, s)
		}
	}

	out := make([]Group, 0, len(byCategory))
	for _, c := range Categories(items) {
		out = append(out, *byCategory[c])
	}
	return out
}
