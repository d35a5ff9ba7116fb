package quote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueUnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind Kind
	}{
		{name: "null", in: `null`, kind: KindNull},
		{name: "integer", in: `100`, kind: KindNumber},
		{name: "float", in: `0.95`, kind: KindNumber},
		{name: "range", in: `[10, 20, 30]`, kind: KindSequence},
		{name: "text", in: `"net 30"`, kind: KindText},
		{name: "numeric string stays text", in: `"100"`, kind: KindText},
		{name: "bool becomes text", in: `true`, kind: KindText},
		{name: "object becomes text", in: `{"a": 1}`, kind: KindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.in), &v))
			assert.Equal(t, tt.kind, v.Kind())
		})
	}
}

func TestValueMean(t *testing.T) {
	mean, ok := Numbers(10, 20, 30).Mean()
	require.True(t, ok)
	assert.Equal(t, 20.0, mean)

	_, ok = Sequence().Mean()
	assert.False(t, ok, "empty range has no mean")

	_, ok = Sequence(Number(1), Text("two")).Mean()
	assert.False(t, ok, "non-numeric element prevents averaging")

	_, ok = Number(5).Mean()
	assert.False(t, ok, "scalars are not averaged")
}

func TestValueRoundTrip(t *testing.T) {
	in := map[string]Value{
		"price": Number(100),
		"range": Numbers(1, 2),
		"terms": Text("net 60"),
		"none":  Null(),
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"price":100,"range":[1,2],"terms":"net 60","none":null}`, string(data))

	var out map[string]Value
	require.NoError(t, json.Unmarshal(data, &out))

	f, ok := out["price"].Float()
	require.True(t, ok)
	assert.Equal(t, 100.0, f)
	assert.Len(t, out["range"].Items(), 2)
	assert.True(t, out["none"].IsNull())
}

func TestItemCloneIsDeep(t *testing.T) {
	item := NewItem("SKU-001", "Bolts")
	item.Component(ComponentPrice).SupplierBids = append(item.Component(ComponentPrice).SupplierBids,
		SupplierBid{Supplier: "A", Value: Number(1), Source: SourceQuoted})

	cp := item.Clone()
	cp.Component(ComponentPrice).SupplierBids[0].Supplier = "B"
	cp.Component("lead_time")

	assert.Equal(t, "A", item.Components[ComponentPrice].SupplierBids[0].Supplier)
	assert.NotContains(t, item.Components, "lead_time")
}

func TestComponentNamesSortedAndDistinct(t *testing.T) {
	a := &Item{SKUID: "1", Components: map[string]*ComponentEntry{"price": {}, "OTIF": {}}}
	b := &Item{SKUID: "2", Components: map[string]*ComponentEntry{"price": {}, "warranty": {}}}

	assert.Equal(t, []string{"OTIF", "price", "warranty"}, ComponentNames([]*Item{a, nil, b}))
}
