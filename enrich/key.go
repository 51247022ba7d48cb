package enrich

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sevigo/ragbench/table"
)

var ErrInvalidKey = errors.New("enrich: invalid encoded key")

// Key identifies one remote lookup: rows with equal keys share a result.
type Key struct {
	Product  string
	Category string
}

// NewKey builds a key from raw cell values. Both parts are NFC-normalised so
// visually identical names written with different code points collapse.
func NewKey(product, category string) Key {
	return Key{
		Product:  norm.NFC.String(product),
		Category: norm.NFC.String(category),
	}
}

// Encode serialises the key for persistence as "<len(product)>:<product>|<category>".
// The length prefix makes the encoding injective for any byte content.
func (k Key) Encode() string {
	return strconv.Itoa(len(k.Product)) + ":" + k.Product + "|" + k.Category
}

func (k Key) String() string {
	return fmt.Sprintf("%q/%q", k.Product, k.Category)
}

// DecodeKey reverses Encode.
func DecodeKey(s string) (Key, error) {
	head, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("%w: missing length prefix in %q", ErrInvalidKey, s)
	}
	n, err := strconv.Atoi(head)
	if err != nil || n < 0 {
		return Key{}, fmt.Errorf("%w: bad length prefix in %q", ErrInvalidKey, s)
	}
	if n >= len(rest) || rest[n] != '|' {
		return Key{}, fmt.Errorf("%w: separator not found after %d bytes in %q", ErrInvalidKey, n, s)
	}
	return Key{Product: rest[:n], Category: rest[n+1:]}, nil
}

// Groups is the deduplicated view of a table: unique keys in first-seen
// order and, for every key, the indices of the rows that carry it.
type Groups struct {
	Keys []Key
	Rows map[Key][]int
}

// Group collects the unique (product, category) keys of rows.
func Group(rows []table.Row, productCol, categoryCol string) *Groups {
	g := &Groups{Rows: make(map[Key][]int)}
	for i, r := range rows {
		k := NewKey(r[productCol], r[categoryCol])
		if _, seen := g.Rows[k]; !seen {
			g.Keys = append(g.Keys, k)
		}
		g.Rows[k] = append(g.Rows[k], i)
	}
	return g
}

// RowCount is the number of rows that were grouped.
func (g *Groups) RowCount() int {
	n := 0
	for _, idx := range g.Rows {
		n += len(idx)
	}
	return n
}

// Broadcast expands per-key results to one identifier per row. Unresolved
// and missing keys yield an empty string.
func (g *Groups) Broadcast(results map[Key]Resolution) []string {
	out := make([]string, g.RowCount())
	for k, idx := range g.Rows {
		res, ok := results[k]
		if !ok || !res.Resolved {
			continue
		}
		for _, i := range idx {
			out[i] = res.ProductID
		}
	}
	return out
}
