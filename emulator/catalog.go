// Package emulator provides a small helper for createAdvancedServer
// handlers that answer fixed queries (SELECT version(), SHOW ...) without
// hand-assembling RowDescription/DataRow field descriptors. It is a
// convenience layer over encoder.ResponseEncoder, not a new wire behavior —
// useful for honeypot/in-memory-substrate handlers that never dial a real
// upstream.
package emulator

import (
	"github.com/lib/pq/oid"

	"github.com/hexpg/pgwire/encoder"
	"github.com/hexpg/pgwire/message"
)

// Column describes one emulated result column. Every value here is
// encoded as text, since the codec's binary mode is an unsupported
// capability.
type Column struct {
	Name string
	Oid  oid.Oid
}

// Columns is a fixed result shape: a RowDescription header plus however
// many DataRows Write is called with.
type Columns []Column

// Define writes the RowDescription header for columns.
func (columns Columns) Define(enc *encoder.ResponseEncoder) error {
	fields := make([]message.FieldDesc, len(columns))
	for i, col := range columns {
		fields[i] = message.FieldDesc{
			Name:             col.Name,
			DataTypeID:       uint32(col.Oid),
			DataTypeModifier: ^uint32(0), // -1 as unsigned: no modifier
			Mode:             message.TextFormat,
		}
	}
	return enc.RowDescription(fields)
}

// Write encodes one row of values as a DataRow. A nil entry encodes as SQL
// NULL; every non-nil entry is sent as its text representation, matching
// Columns.Define's all-text field descriptors.
func (columns Columns) Write(enc *encoder.ResponseEncoder, values []*string) error {
	return enc.DataRow(values)
}

// Catalog is a small registry of fixed query responses keyed by exact SQL
// text, useful for answering the handful of introspection queries most
// clients issue on connect (SELECT version(), SHOW standard_conforming_strings,
// etc.) without a real backing database.
type Catalog struct {
	entries map[string]Entry
}

// Entry is one canned response: a column shape plus the rows to emit.
type Entry struct {
	Columns Columns
	Rows    [][]*string
}

// NewCatalog constructs an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: map[string]Entry{}}
}

// Register adds or replaces the canned response for the exact query text.
func (c *Catalog) Register(query string, entry Entry) {
	c.entries[query] = entry
}

// Lookup returns the canned response for query, if any.
func (c *Catalog) Lookup(query string) (Entry, bool) {
	entry, ok := c.entries[query]
	return entry, ok
}

// Respond writes entry's RowDescription, every DataRow, and a
// CommandComplete tagged with tag (e.g. "SELECT 1") to enc.
func (c *Catalog) Respond(enc *encoder.ResponseEncoder, entry Entry, tag string) error {
	if err := entry.Columns.Define(enc); err != nil {
		return err
	}
	for _, row := range entry.Rows {
		if err := entry.Columns.Write(enc, row); err != nil {
			return err
		}
	}
	return enc.CommandComplete(tag)
}

// NewText is a convenience constructor for a non-null text DataRow field.
func NewText(s string) *string { return &s }
