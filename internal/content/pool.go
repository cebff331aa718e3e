// ASH Message Automation - Smoking Cessation Study Messaging
// Copyright 2026 UOSAN
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/UOSAN/message-automation

package content

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/UOSAN/message-automation/internal/models"
)

// Catalog column names.
const (
	ColumnMessage     = "Message"
	ColumnConditionNo = "ConditionNo"
	ColumnValue1      = "Value1"
	ColumnUOID        = "UO_ID"
)

// Pool is an ordered table of catalog rows. Every row has one cell per column.
type Pool struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// Load reads a catalog CSV. The first record is the header.
func Load(path string) (*Pool, error) {
	return load(path, Read)
}

// LoadDrawn reads a participant's drawn pool as written by Generate: the
// UO_ID and Message columns only.
func LoadDrawn(path string) (*Pool, error) {
	return load(path, func(r io.Reader) (*Pool, error) {
		return read(r, ColumnUOID, ColumnMessage)
	})
}

func load(path string, parse func(io.Reader) (*Pool, error)) (*Pool, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from configuration
	if err != nil {
		reason := "cannot open file"
		if errors.Is(err, fs.ErrNotExist) {
			reason = "file does not exist"
		}
		return nil, &ContentLoadError{Path: path, Reason: reason, Err: err}
	}
	defer f.Close()

	p, err := parse(f)
	if err != nil {
		var cle *ContentLoadError
		if errors.As(err, &cle) {
			cle.Path = path
			return nil, cle
		}
		return nil, &ContentLoadError{Path: path, Reason: "malformed csv", Err: err}
	}
	return p, nil
}

// Read parses a catalog from r.
func Read(r io.Reader) (*Pool, error) {
	return read(r, ColumnMessage, ColumnConditionNo)
}

func read(r io.Reader, required ...string) (*Pool, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, &ContentLoadError{Reason: "malformed csv", Err: err}
	}
	if len(records) == 0 {
		return nil, &ContentLoadError{Reason: "file is empty"}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	p := newPool(header)
	for _, col := range required {
		if _, ok := p.index[col]; !ok {
			return nil, &ContentLoadError{Reason: fmt.Sprintf("missing %s column", col)}
		}
	}
	if len(records) == 1 {
		return nil, &ContentLoadError{Reason: "file has no messages"}
	}

	for _, rec := range records[1:] {
		row := make([]string, len(header))
		copy(row, rec)
		p.rows = append(p.rows, row)
	}
	return p, nil
}

func newPool(columns []string) *Pool {
	p := &Pool{
		columns: slices.Clone(columns),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range p.columns {
		p.index[c] = i
	}
	return p
}

// Len returns the number of rows.
func (p *Pool) Len() int {
	return len(p.rows)
}

// Columns returns the column names in file order.
func (p *Pool) Columns() []string {
	return slices.Clone(p.columns)
}

// Get returns the message text of row i.
func (p *Pool) Get(i int) string {
	return p.rows[i][p.index[ColumnMessage]]
}

// Value returns the cell of row i in the named column, or "" when the
// column does not exist.
func (p *Pool) Value(i int, column string) string {
	c, ok := p.index[column]
	if !ok {
		return ""
	}
	return p.rows[i][c]
}

// Row returns a copy of row i keyed by column name.
func (p *Pool) Row(i int) map[string]string {
	row := make(map[string]string, len(p.columns))
	for c, name := range p.columns {
		row[name] = p.rows[i][c]
	}
	return row
}

// FilterByCondition draws a pool of exactly required rows.
//
// For the VALUES condition with value tags, a row matches when its Value1
// names one of the tags. Otherwise a row matches when ConditionNo equals the
// condition code. Matching rows are sampled without replacement; when fewer
// than required exist, the sample is repeated from the front.
func (p *Pool) FilterByCondition(rng *rand.Rand, condition models.Condition, values []models.CodedValue, required int) (*Pool, error) {
	if required <= 0 {
		return nil, fmt.Errorf("required message count must be positive, got %d", required)
	}

	matches := p.matching(condition, values)
	if len(matches) == 0 {
		return nil, &EmptyPoolError{Condition: condition, Values: slices.Clone(values)}
	}

	sample := min(len(matches), required)
	perm := rng.Perm(len(matches))[:sample]

	out := newPool(p.columns)
	out.rows = make([][]string, 0, required)
	for _, j := range perm {
		out.rows = append(out.rows, slices.Clone(p.rows[matches[j]]))
	}
	for i := 0; len(out.rows) < required; i++ {
		out.rows = append(out.rows, slices.Clone(out.rows[i]))
	}
	return out, nil
}

func (p *Pool) matching(condition models.Condition, values []models.CodedValue) []int {
	var matches []int

	if condition == models.ConditionValues && len(values) > 0 {
		col, ok := p.index[ColumnValue1]
		if !ok {
			return nil
		}
		names := make([]string, len(values))
		for i, v := range values {
			names[i] = v.String()
		}
		for i, row := range p.rows {
			tag := strings.TrimSpace(row[col])
			if slices.ContainsFunc(names, func(n string) bool { return strings.EqualFold(n, tag) }) {
				matches = append(matches, i)
			}
		}
		return matches
	}

	col := p.index[ColumnConditionNo]
	for i, row := range p.rows {
		code, err := strconv.Atoi(strings.TrimSpace(row[col]))
		if err == nil && code == int(condition) {
			matches = append(matches, i)
		}
	}
	return matches
}

// AddColumn sets a column on every row, adding it when absent.
func (p *Pool) AddColumn(name string, values []string) error {
	if len(values) != len(p.rows) {
		return fmt.Errorf("column %s has %d values, pool has %d rows", name, len(values), len(p.rows))
	}
	c, ok := p.index[name]
	if !ok {
		c = len(p.columns)
		p.columns = append(p.columns, name)
		p.index[name] = c
		for i := range p.rows {
			p.rows[i] = append(p.rows[i], "")
		}
	}
	for i, v := range values {
		p.rows[i][c] = v
	}
	return nil
}

// WriteTo writes the selected columns as CSV. A nil columns slice writes every
// column. header renames the columns in the first record; nil keeps their names.
func (p *Pool) WriteTo(w io.Writer, columns, header []string) error {
	if columns == nil {
		columns = p.columns
	}
	if header == nil {
		header = columns
	}
	if len(header) != len(columns) {
		return fmt.Errorf("header has %d names for %d columns", len(header), len(columns))
	}

	idx := make([]int, len(columns))
	for i, name := range columns {
		c, ok := p.index[name]
		if !ok {
			return fmt.Errorf("unknown column %s", name)
		}
		idx[i] = c
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(idx))
	for _, row := range p.rows {
		for i, c := range idx {
			record[i] = row[c]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Write writes the selected columns to a file at path.
func (p *Pool) Write(path string, columns, header []string) error {
	f, err := os.Create(path) //nolint:gosec // path is built from the download directory
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := p.WriteTo(f, columns, header); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
