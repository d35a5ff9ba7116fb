package suppliers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/quote"
)

const seed = "\ufeffSupplier Name,Category,email\n" +
	"Acme Fasteners, Fasteners ,sales@acme.test\n" +
	",Fasteners,nobody@test\n" +
	"BoxCo,Packaging,hello@boxco.test\n" +
	"Bolt Bros,Fasteners\n"

func TestParseSeed(t *testing.T) {
	got, err := ParseSeed(strings.NewReader(seed))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Supplier{ID: "Acme Fasteners", Name: "Acme Fasteners", Category: "Fasteners", Email: "sales@acme.test"}, got[0])
	assert.Equal(t, "BoxCo", got[1].ID)
	assert.Empty(t, got[2].Email, "short rows leave missing columns empty")
}

func TestParseSeedMissingColumn(t *testing.T) {
	_, err := ParseSeed(strings.NewReader("Name,Category\nx,y\n"))
	assert.ErrorContains(t, err, ColumnName)

	got, err := ParseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suppliers_seed.csv")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	got, err := LoadSeedFile(path)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	missing, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.csv"))
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestStaticDirectoryByCategories(t *testing.T) {
	all, err := ParseSeed(strings.NewReader(seed))
	require.NoError(t, err)
	dir := NewStaticDirectory(all)

	fasteners, err := dir.ByCategories(context.Background(), []string{"Fasteners"})
	require.NoError(t, err)
	assert.Len(t, fasteners, 2)

	everyone, err := dir.ByCategories(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, everyone, 3)

	none, err := dir.ByCategories(context.Background(), []string{"Electrical"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSupplierValidate(t *testing.T) {
	s := Supplier{Name: " Acme ", Category: "Fasteners", Email: "sales@acme.test"}
	require.NoError(t, s.Validate())
	assert.Equal(t, "Acme", s.ID)

	bad := Supplier{Name: "Acme", Category: "Fasteners", Email: "not-an-email"}
	assert.Error(t, bad.Validate())

	missing := Supplier{Email: "a@b.test"}
	assert.Error(t, missing.Validate())
}

func TestGroupByCategory(t *testing.T) {
	bolts := quote.NewItem("SKU-001", "bolts")
	bolts.Category = "Fasteners"
	tape := quote.NewItem("SKU-002", "tape")
	tape.Category = "Packaging"
	mystery := quote.NewItem("SKU-003", "mystery")

	all, err := ParseSeed(strings.NewReader(seed))
	require.NoError(t, err)

	groups := GroupByCategory([]*quote.Item{tape, bolts, mystery}, all)
	require.Len(t, groups, 3)

	assert.Equal(t, "Fasteners", groups[0].Category)
	assert.Len(t, groups[0].Suppliers, 2)
	assert.Equal(t, "SKU-001", groups[0].Items[0].SKUID)

	assert.Equal(t, "Packaging", groups[1].Category)
	assert.Equal(t, quote.Uncategorized, groups[2].Category)
	assert.Empty(t, groups[2].Suppliers)

	assert.Equal(t, []string{"Fasteners", "Packaging", quote.Uncategorized}, Categories([]*quote.Item{tape, bolts, mystery}))
}
