package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/util/metrics"

	"gorm.io/gorm"
)

// EmployeeFields are the user supplied fields of a new record.
type EmployeeFields struct {
	Name       string `json:"name" form:"name"`
	Email      string `json:"email" form:"email"`
	Department string `json:"department" form:"department"`
	Position   string `json:"position" form:"position"`
	StartDate  string `json:"startDate" form:"startDate"`
}

// RecordGateway is the employee record store. Create applies the default
// status and progress and stamps the creation time; it does not validate.
// Delete does not check that the record exists. List returns records in the
// store's native order. All failures are *StoreError.
type RecordGateway interface {
	List(ctx context.Context) ([]model.Employee, error)
	Create(ctx context.Context, fields EmployeeFields) (string, error)
	Delete(ctx context.Context, id string) error
}

func newEmployee(fields EmployeeFields, now time.Time) model.Employee {
	return model.Employee{
		Id:         uuid.NewString(),
		Name:       fields.Name,
		Email:      fields.Email,
		Department: fields.Department,
		Position:   fields.Position,
		StartDate:  fields.StartDate,
		Status:     model.StatusPending,
		Progress:   model.DefaultProgress,
		CreatedAt:  now.UTC(),
	}
}

// SQLRecordGateway keeps records in the portal database.
type SQLRecordGateway struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLRecordGateway(db *gorm.DB) *SQLRecordGateway {
	return &SQLRecordGateway{db: db, now: time.Now}
}

func (g *SQLRecordGateway) List(ctx context.Context) ([]model.Employee, error) {
	var records []model.Employee
	if err := g.db.WithContext(ctx).Find(&records).Error; err != nil {
		return nil, classifySQLError("list", err)
	}
	return records, nil
}

func (g *SQLRecordGateway) Create(ctx context.Context, fields EmployeeFields) (string, error) {
	e := newEmployee(fields, g.now())
	if err := g.db.WithContext(ctx).Create(&e).Error; err != nil {
		return "", classifySQLError("create", err)
	}
	return e.Id, nil
}

func (g *SQLRecordGateway) Delete(ctx context.Context, id string) error {
	err := g.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Employee{}).Error
	if err != nil {
		return classifySQLError("delete", err)
	}
	return nil
}

func classifySQLError(op string, err error) *StoreError {
	kind := StoreUnknown
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = StoreNetwork
	case strings.Contains(msg, "readonly"), strings.Contains(msg, "permission denied"), strings.Contains(msg, "access denied"):
		kind = StorePermission
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "unable to open"):
		kind = StoreNetwork
	}
	return &StoreError{Kind: kind, Op: op, Err: err}
}

// instrumentedGateway counts and logs every gateway call.
type instrumentedGateway struct {
	next RecordGateway
}

// Instrument wraps g with metrics and warning logs.
func Instrument(g RecordGateway) RecordGateway {
	return &instrumentedGateway{next: g}
}

func (g *instrumentedGateway) observe(op string, err error) {
	metrics.RecordOpsTotal.WithLabelValues(op, metrics.Outcome(err)).Inc()
	if err != nil {
		logger.Warningf("record %s failed: %v", op, err)
	}
}

func (g *instrumentedGateway) List(ctx context.Context) ([]model.Employee, error) {
	records, err := g.next.List(ctx)
	g.observe("list", err)
	return records, err
}

func (g *instrumentedGateway) Create(ctx context.Context, fields EmployeeFields) (string, error) {
	id, err := g.next.Create(ctx, fields)
	g.observe("create", err)
	return id, err
}

func (g *instrumentedGateway) Delete(ctx context.Context, id string) error {
	err := g.next.Delete(ctx, id)
	g.observe("delete", err)
	return err
}
