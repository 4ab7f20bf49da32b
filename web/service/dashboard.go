package service

import (
	"context"
	"strings"

	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
)

// Stats summarises a record list. Records with any other status, or none,
// count toward Total only.
type Stats struct {
	Total      int `json:"total"`
	Onboarding int `json:"onboarding"`
	Active     int `json:"active"`
	Pending    int `json:"pending"`
}

// Snapshot is the dashboard state after the latest confirmed store read.
type Snapshot struct {
	Records []model.Employee `json:"records"`
	Stats   Stats            `json:"stats"`
}

type RecordAction string

const (
	RecordCreated RecordAction = "created"
	RecordDeleted RecordAction = "deleted"
)

// RecordChange describes a confirmed mutation. Origin is the websocket
// client id of the tab that asked for it, if it sent one.
type RecordChange struct {
	Action RecordAction
	ID     string
	Fields EmployeeFields
	Origin string
}

type originKey struct{}

// WithOrigin tags ctx with the websocket client id of the requesting tab.
func WithOrigin(ctx context.Context, clientID string) context.Context {
	if clientID == "" {
		return ctx
	}
	return context.WithValue(ctx, originKey{}, clientID)
}

func originFrom(ctx context.Context) string {
	id, _ := ctx.Value(originKey{}).(string)
	return id
}

// RecordListener is told about every confirmed mutation.
type RecordListener interface {
	RecordsChanged(ctx context.Context, change RecordChange)
}

// DashboardService drives the HR dashboard. Every mutation is followed by a
// full re-read of the store, so a snapshot never holds unconfirmed state.
type DashboardService struct {
	gateway   RecordGateway
	listeners []RecordListener
}

func NewDashboardService(gateway RecordGateway, listeners ...RecordListener) *DashboardService {
	return &DashboardService{gateway: gateway, listeners: listeners}
}

// Refresh reads the full record list.
func (s *DashboardService) Refresh(ctx context.Context) (Snapshot, error) {
	records, err := s.gateway.List(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Records: records, Stats: ComputeStats(records)}, nil
}

// Create validates fields, stores the record and re-reads the list. Missing
// name or email fails with *ValidationError before the store is touched. A
// failed re-read after a confirmed create returns the new id together with
// a *RefreshError.
func (s *DashboardService) Create(ctx context.Context, fields EmployeeFields) (Snapshot, string, error) {
	fields = trimFields(fields)
	if fields.Name == "" {
		return Snapshot{}, "", &ValidationError{Field: "name"}
	}
	if fields.Email == "" {
		return Snapshot{}, "", &ValidationError{Field: "email"}
	}

	id, err := s.gateway.Create(ctx, fields)
	if err != nil {
		return Snapshot{}, "", err
	}
	logger.Infof("employee %s (%s) added", id, fields.Email)
	s.emit(ctx, RecordChange{Action: RecordCreated, ID: id, Fields: fields})

	snap, err := s.Refresh(ctx)
	if err != nil {
		return Snapshot{}, id, &RefreshError{Err: err}
	}
	return snap, id, nil
}

// Delete removes a record and re-reads the list.
func (s *DashboardService) Delete(ctx context.Context, id string) (Snapshot, error) {
	if err := s.gateway.Delete(ctx, id); err != nil {
		return Snapshot{}, err
	}
	logger.Infof("employee %s deleted", id)
	s.emit(ctx, RecordChange{Action: RecordDeleted, ID: id})
	snap, err := s.Refresh(ctx)
	if err != nil {
		return Snapshot{}, &RefreshError{Err: err}
	}
	return snap, nil
}

// FindByEmail returns the first record whose email matches, ignoring case.
func (s *DashboardService) FindByEmail(ctx context.Context, email string) (*model.Employee, error) {
	records, err := s.gateway.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if strings.EqualFold(records[i].Email, email) {
			return &records[i], nil
		}
	}
	return nil, nil
}

func (s *DashboardService) emit(ctx context.Context, change RecordChange) {
	change.Origin = originFrom(ctx)
	for _, l := range s.listeners {
		l.RecordsChanged(ctx, change)
	}
}

func trimFields(f EmployeeFields) EmployeeFields {
	return EmployeeFields{
		Name:       strings.TrimSpace(f.Name),
		Email:      strings.TrimSpace(f.Email),
		Department: strings.TrimSpace(f.Department),
		Position:   strings.TrimSpace(f.Position),
		StartDate:  strings.TrimSpace(f.StartDate),
	}
}

func ComputeStats(records []model.Employee) Stats {
	stats := Stats{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case model.StatusOnboarding:
			stats.Onboarding++
		case model.StatusActive:
			stats.Active++
		case model.StatusPending:
			stats.Pending++
		}
	}
	return stats
}

// Filter returns the records whose name, email or department contains term,
// ignoring case. An empty term matches everything. The input is not modified.
func Filter(records []model.Employee, term string) []model.Employee {
	out := make([]model.Employee, 0, len(records))
	if term == "" {
		return append(out, records...)
	}
	needle := strings.ToLower(term)
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Name), needle) ||
			strings.Contains(strings.ToLower(r.Email), needle) ||
			strings.Contains(strings.ToLower(r.Department), needle) {
			out = append(out, r)
		}
	}
	return out
}
