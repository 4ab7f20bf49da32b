package service

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/database/model"

	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) {
	require.NoError(t, database.InitDB(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { _ = database.CloseDB() })
}

// memoryGateway is a deterministic in-memory RecordGateway. It keeps
// insertion order and counts calls.
type memoryGateway struct {
	mu      sync.Mutex
	records []model.Employee
	calls   map[string]int
	failOn  map[string]error
	now     time.Time
}

func newMemoryGateway(records ...model.Employee) *memoryGateway {
	return &memoryGateway{
		records: append([]model.Employee(nil), records...),
		calls:   map[string]int{},
		failOn:  map[string]error{},
		now:     time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (g *memoryGateway) List(ctx context.Context) ([]model.Employee, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["list"]++
	if err := g.failOn["list"]; err != nil {
		return nil, err
	}
	return append([]model.Employee(nil), g.records...), nil
}

func (g *memoryGateway) Create(ctx context.Context, fields EmployeeFields) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["create"]++
	if err := g.failOn["create"]; err != nil {
		return "", err
	}
	e := newEmployee(fields, g.now)
	g.records = append(g.records, e)
	return e.Id, nil
}

func (g *memoryGateway) Delete(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["delete"]++
	if err := g.failOn["delete"]; err != nil {
		return err
	}
	for i, r := range g.records {
		if r.Id == id {
			g.records = append(g.records[:i], g.records[i+1:]...)
			break
		}
	}
	return nil
}

func employee(name, email, department string, status model.Status) model.Employee {
	return model.Employee{
		Id:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Department: department,
		Status:     status,
	}
}

var errStoreDown = &StoreError{Kind: StoreNetwork, Op: "list", Err: errors.New("connection refused")}
