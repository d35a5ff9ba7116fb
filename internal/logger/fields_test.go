package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  sku_id  ", Value: "  SKU-001  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	require.Len(t, fields, 1)
	assert.Equal(t, "sku_id", fields[0].Key)
	assert.Equal(t, "SKU-001", fields[0].String)
	assert.Empty(t, StringFields())
}

func TestWithCommonFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)

	WithCommonFields(zap.New(core), "gemini", "gemini-2.0-flash").Info("generate")

	entries := observed.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "gemini", ctx[FieldProvider])
	assert.Equal(t, "gemini-2.0-flash", ctx[FieldModel])

	assert.NotNil(t, WithCommonFields(nil, "gemini", ""))
}

func TestItemAndSupplierFields(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	log := zap.New(core)

	log.Info("item", ItemFields("SKU-001", "")...)
	log.Info("supplier", SupplierFields("Acme", "Fasteners")...)

	entries := observed.All()
	require.Len(t, entries, 2)

	item := entries[0].ContextMap()
	assert.Equal(t, "SKU-001", item[FieldSKU])
	assert.NotContains(t, item, FieldCategory)

	supplier := entries[1].ContextMap()
	assert.Equal(t, "Acme", supplier[FieldSupplier])
	assert.Equal(t, "Fasteners", supplier[FieldCategory])
}
