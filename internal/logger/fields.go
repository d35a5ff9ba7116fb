package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured field keys shared across the sourcing run.
const (
	FieldProvider = "ai_provider"
	FieldModel    = "ai_model"
	FieldSKU      = "sku_id"
	FieldSupplier = "supplier_id"
	FieldCategory = "category"
)

type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields. Keys and values are
// trimmed; pairs with an empty key or value are dropped.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		value := strings.TrimSpace(field.Value)
		if key == "" || value == "" {
			continue
		}
		result = append(result, zap.String(key, value))
	}
	return result
}

// WithFields attaches fields to logger, falling back to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// WithCommonFields tags logger with the model provider and model name.
func WithCommonFields(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)...)
}

// ItemFields describes one item of the run.
func ItemFields(skuID, category string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSKU, Value: skuID},
		StringField{Key: FieldCategory, Value: category},
	)
}

// SupplierFields describes one supplier contacted within a category.
func SupplierFields(supplierID, category string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSupplier, Value: supplierID},
		StringField{Key: FieldCategory, Value: category},
	)
}
