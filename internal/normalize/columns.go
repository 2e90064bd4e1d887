package normalize

import (
	"fmt"
	"strings"
)

// ColumnSpec describes one logical column and the header spellings that
// identify it. Aliases are tried as exact matches first and as substrings
// second; Terms are groups of fragments that must all appear in a header.
type ColumnSpec struct {
	Name     string
	Aliases  []string
	Terms    [][]string
	Required bool
}

// Columns maps a logical column name to its index in the header row.
type Columns map[string]int

func (c Columns) Has(name string) bool {
	_, ok := c[name]
	return ok
}

// Get returns the trimmed cell of row for the logical column, or "".
func (c Columns) Get(row []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// MissingColumnError is returned when a mandatory column cannot be resolved.
type MissingColumnError struct {
	Entity    string
	Column    string
	Available []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing mandatory column %q (available columns: %s)",
		e.Entity, e.Column, strings.Join(e.Available, ", "))
}

// FindColumn returns the index of the first header matching any candidate,
// or -1. Exact matches (in header order) win over substring matches (in
// candidate order). Indexes in skip are never returned.
func FindColumn(header []string, candidates []string, skip map[int]bool) int {
	normHeader := make([]string, len(header))
	for i, h := range header {
		normHeader[i] = Text(h)
	}
	targets := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if t := Text(c); t != "" {
			targets = append(targets, t)
		}
	}
	for i, h := range normHeader {
		if skip[i] || h == "" {
			continue
		}
		for _, t := range targets {
			if h == t {
				return i
			}
		}
	}
	for _, t := range targets {
		for i, h := range normHeader {
			if skip[i] || h == "" {
				continue
			}
			if strings.Contains(h, t) {
				return i
			}
		}
	}
	return -1
}

// FindColumnByTerms returns the first header containing every term, or -1.
func FindColumnByTerms(header []string, terms []string, skip map[int]bool) int {
	for i, h := range header {
		if skip[i] {
			continue
		}
		nh := Text(h)
		if nh == "" {
			continue
		}
		all := true
		for _, t := range terms {
			if !strings.Contains(nh, Text(t)) {
				all = false
				break
			}
		}
		if all {
			return i
		}
	}
	return -1
}

// Resolve maps every spec onto the header. Specs are resolved in order and a
// header claimed by an earlier spec is not offered to later ones, so the
// result only depends on the header and the spec list.
func Resolve(entity string, header []string, specs []ColumnSpec) (Columns, error) {
	cols := make(Columns, len(specs))
	claimed := make(map[int]bool, len(specs))
	for _, spec := range specs {
		idx := FindColumn(header, spec.Aliases, claimed)
		for _, terms := range spec.Terms {
			if idx >= 0 {
				break
			}
			idx = FindColumnByTerms(header, terms, claimed)
		}
		if idx < 0 {
			if spec.Required {
				return cols, &MissingColumnError{Entity: entity, Column: spec.Name, Available: availableHeaders(header)}
			}
			continue
		}
		cols[spec.Name] = idx
		claimed[idx] = true
	}
	return cols, nil
}

func availableHeaders(header []string) []string {
	out := make([]string, 0, len(header))
	for _, h := range header {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
