package ledger

import (
	"context"
	"sync"
)

// Memory is an in-process ledger. It backs tests and the memory driver.
type Memory struct {
	mu   sync.Mutex
	rows [][]string
}

// NewMemory returns an empty ledger with only the header row.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) AppendRow(_ context.Context, values []string) error {
	if err := checkWidth(values); err != nil {
		return err
	}
	row := make([]string, len(values))
	copy(row, values)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return nil
}

func (m *Memory) UpdateCell(_ context.Context, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkCell(row, col, len(m.rows)); err != nil {
		return err
	}
	m.rows[row-HeaderRow-1][col-1] = value
	return nil
}

func (m *Memory) ReadAllRecords(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, ToRecord(row))
	}
	return out, nil
}

func (m *Memory) Close() error {
	return nil
}

// Len returns the number of data rows.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}
