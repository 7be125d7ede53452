package dataservice

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gridbase-io/gridbase/internal/shared/errors"
)

// Memory is an in-process data service. It backs the test suites and the
// demo wiring; production deployments inject a vendor-backed Factory instead.
type Memory struct {
	mu     sync.RWMutex
	spaces map[string]map[string]*memTable
}

type memTable struct {
	schema Schema
	rows   []Row
	nextID int64
}

// NewMemory creates an empty in-memory data service.
func NewMemory() *Memory {
	return &Memory{spaces: make(map[string]map[string]*memTable)}
}

// MemoryFactory returns a Factory that hands every session the same shared
// in-memory service regardless of credentials.
func MemoryFactory(m *Memory) Factory {
	return FactoryFunc(func(ctx context.Context, creds Credentials) (Interface, error) {
		return m, nil
	})
}

// CreateTable registers a table with the given schema.
func (m *Memory) CreateTable(schema Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tables, ok := m.spaces[schema.Namespace]
	if !ok {
		tables = make(map[string]*memTable)
		m.spaces[schema.Namespace] = tables
	}
	tables[schema.Table] = &memTable{schema: schema, nextID: 1}
}

// Seed appends rows to an existing table without key checks.
func (m *Memory) Seed(namespace, table string, rows ...Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(namespace, table)
	if err != nil {
		return err
	}
	t.rows = append(t.rows, rows...)
	t.nextID += int64(len(rows))
	return nil
}

func (m *Memory) ListNamespaces(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.spaces))
	for name := range m.spaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) ListTables(ctx context.Context, namespace string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tables, ok := m.spaces[namespace]
	if !ok {
		return nil, errors.NewDataServiceError(fmt.Sprintf("unknown namespace %q", namespace))
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *Memory) GetSchema(ctx context.Context, namespace, table string) (*Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.table(namespace, table)
	if err != nil {
		return nil, err
	}
	schema := t.schema
	return &schema, nil
}

func (m *Memory) FetchPage(ctx context.Context, namespace, table string, filters []Filter, sorts []Sort, offset, limit int) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.table(namespace, table)
	if err != nil {
		return nil, err
	}

	matched := make([]Row, 0, len(t.rows))
	for _, row := range t.rows {
		if rowMatches(row, filters) {
			matched = append(matched, row)
		}
	}
	sortRows(matched, sorts)

	total := int64(len(matched))
	if offset < 0 {
		offset = 0
	}
	if offset > len(matched) {
		offset = len(matched)
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	page := &Page{Rows: make([]Row, 0, end-offset), Offset: offset, Total: total}
	for _, row := range matched[offset:end] {
		page.Rows = append(page.Rows, cloneRow(row))
	}
	return page, nil
}

func (m *Memory) InsertRow(ctx context.Context, namespace, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(namespace, table)
	if err != nil {
		return nil, err
	}

	stored := cloneRow(row)
	for _, col := range t.schema.Columns {
		if col.PrimaryKey {
			if _, present := stored[col.Name]; !present {
				stored[col.Name] = t.nextID
			}
		}
	}
	t.nextID++
	t.rows = append(t.rows, stored)
	return cloneRow(stored), nil
}

func (m *Memory) UpdateCell(ctx context.Context, namespace, table string, key Row, column string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(namespace, table)
	if err != nil {
		return err
	}
	for _, row := range t.rows {
		if rowHasKey(row, key) {
			row[column] = value
			return nil
		}
	}
	return errors.NewDataServiceError("no row matches the given key")
}

func (m *Memory) DeleteRow(ctx context.Context, namespace, table string, key Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.table(namespace, table)
	if err != nil {
		return err
	}
	for i, row := range t.rows {
		if rowHasKey(row, key) {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			return nil
		}
	}
	return errors.NewDataServiceError("no row matches the given key")
}

func (m *Memory) Close() error {
	return nil
}

// RowCount reports the current row count of a table. Test helper.
func (m *Memory) RowCount(namespace, table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.table(namespace, table)
	if err != nil {
		return 0
	}
	return len(t.rows)
}

func (m *Memory) table(namespace, table string) (*memTable, error) {
	tables, ok := m.spaces[namespace]
	if !ok {
		return nil, errors.NewDataServiceError(fmt.Sprintf("unknown namespace %q", namespace))
	}
	t, ok := tables[table]
	if !ok {
		return nil, errors.NewDataServiceError(fmt.Sprintf("unknown table %q", table))
	}
	return t, nil
}

func cloneRow(row Row) Row {
	clone := make(Row, len(row))
	for k, v := range row {
		clone[k] = v
	}
	return clone
}

func rowHasKey(row, key Row) bool {
	for k, v := range key {
		if !valuesEqual(row[k], v) {
			return false
		}
	}
	return len(key) > 0
}

func rowMatches(row Row, filters []Filter) bool {
	for _, f := range filters {
		if !filterMatches(row[f.Column], f) {
			return false
		}
	}
	return true
}

func filterMatches(value any, f Filter) bool {
	switch f.Operator {
	case "=":
		return valuesEqual(value, f.Value)
	case "!=":
		return !valuesEqual(value, f.Value)
	case "<", "<=", ">", ">=":
		cmp, ok := compareValues(value, f.Value)
		if !ok {
			return false
		}
		switch f.Operator {
		case "<":
			return cmp < 0
		case "<=":
			return cmp <= 0
		case ">":
			return cmp > 0
		default:
			return cmp >= 0
		}
	case "like":
		pattern, ok := f.Value.(string)
		if !ok {
			return false
		}
		return likeMatches(fmt.Sprintf("%v", value), pattern)
	default:
		return false
	}
}

func valuesEqual(a, b any) bool {
	if cmp, ok := compareValues(a, b); ok {
		return cmp == 0
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareValues compares two scalars numerically when both are numbers,
// lexically otherwise. JSON decoding yields float64 while seeded fixtures may
// use int, so numeric comparison goes through float64.
func compareValues(a, b any) (int, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	default:
		return 0, false
	}
}

// likeMatches supports the SQL LIKE subset with % at either end.
func likeMatches(s, pattern string) bool {
	leading := strings.HasPrefix(pattern, "%")
	trailing := strings.HasSuffix(pattern, "%")
	core := strings.TrimSuffix(strings.TrimPrefix(pattern, "%"), "%")

	switch {
	case leading && trailing:
		return strings.Contains(s, core)
	case leading:
		return strings.HasSuffix(s, core)
	case trailing:
		return strings.HasPrefix(s, core)
	default:
		return s == pattern
	}
}

func sortRows(rows []Row, sorts []Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, s := range sorts {
			cmp, ok := compareValues(rows[i][s.Column], rows[j][s.Column])
			if !ok {
				cmp = strings.Compare(fmt.Sprintf("%v", rows[i][s.Column]), fmt.Sprintf("%v", rows[j][s.Column]))
			}
			if cmp == 0 {
				continue
			}
			if s.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
