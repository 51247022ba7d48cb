package enrich_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/enrich"
	"github.com/sevigo/ragbench/table"
)

func TestKey_EncodeRoundTrip(t *testing.T) {
	keys := []enrich.Key{
		{Product: "Shoe", Category: "Footwear"},
		{Product: "a|b", Category: "c"},
		{Product: "a", Category: "b|c"},
		{Product: "", Category: ""},
		{Product: "12:x|", Category: "|"},
		{Product: "Ünïcødé 🚀", Category: "it's \"quoted\", (tuple)"},
	}
	seen := make(map[string]enrich.Key)
	for _, k := range keys {
		enc := k.Encode()
		if prev, dup := seen[enc]; dup {
			t.Fatalf("keys %v and %v encode to the same string %q", prev, k, enc)
		}
		seen[enc] = k

		got, err := enrich.DecodeKey(enc)
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
}

func TestDecodeKey_Invalid(t *testing.T) {
	for _, s := range []string{"", "nocolon", "x:abc", "-1:|", "5:ab|c", "3:abc"} {
		_, err := enrich.DecodeKey(s)
		assert.ErrorIs(t, err, enrich.ErrInvalidKey, "input %q", s)
	}
}

func TestNewKey_NormalizesUnicode(t *testing.T) {
	composed := enrich.NewKey("Caf\u00e9", "Drinks")
	decomposed := enrich.NewKey("Cafe\u0301", "Drinks")
	assert.Equal(t, composed, decomposed)
	assert.NotEqual(t, "Caf\u00e9", "Cafe\u0301")
}

func TestGroupAndBroadcast(t *testing.T) {
	rows := []table.Row{
		{"product": "A", "product category": "X"},
		{"product": "A", "product category": "X"},
		{"product": "B", "product category": "Y"},
		{"product": "A", "product category": "Y"},
	}
	g := enrich.Group(rows, "product", "product category")

	require.Len(t, g.Keys, 3)
	assert.Equal(t, enrich.Key{Product: "A", Category: "X"}, g.Keys[0], "first-seen order")
	assert.Equal(t, []int{0, 1}, g.Rows[g.Keys[0]])
	assert.Equal(t, 4, g.RowCount())

	ids := g.Broadcast(map[enrich.Key]enrich.Resolution{
		g.Keys[0]: {ProductID: "id-ax", Resolved: true},
		g.Keys[1]: {Error: "boom"},
	})
	assert.Equal(t, []string{"id-ax", "id-ax", "", ""}, ids)
}
