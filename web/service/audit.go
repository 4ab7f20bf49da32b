package service

import (
	"fmt"
	"time"

	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"

	"github.com/goccy/go-json"
)

const (
	AuditLogin  = "LOGIN"
	AuditLogout = "LOGOUT"
	AuditCreate = "CREATE"
	AuditDelete = "DELETE"
)

// AuditEntry is one action to record.
type AuditEntry struct {
	UID        string
	Email      string
	Action     string
	Resource   string
	ResourceID string
	IP         string
	UserAgent  string
	Details    map[string]any
}

// AuditLogService handles audit logging
type AuditLogService struct{}

// LogAction stores an audit entry.
func (s *AuditLogService) LogAction(e AuditEntry) error {
	detailsJSON := ""
	if e.Details != nil {
		jsonData, err := json.Marshal(e.Details)
		if err != nil {
			logger.Warning("Failed to marshal audit log details:", err)
		} else {
			detailsJSON = string(jsonData)
		}
	}

	auditLog := model.AuditLog{
		UID:        e.UID,
		Email:      e.Email,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		IP:         e.IP,
		UserAgent:  e.UserAgent,
		Details:    detailsJSON,
		Timestamp:  time.Now(),
	}

	if err := database.GetDB().Create(&auditLog).Error; err != nil {
		logger.Warningf("Failed to create audit log: uid=%s, action=%s, error=%v", e.UID, e.Action, err)
		return err
	}
	return nil
}

// GetAuditLogs returns the newest entries, optionally for one action.
func (s *AuditLogService) GetAuditLogs(limit int, action string) ([]model.AuditLog, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query := database.GetDB().Model(&model.AuditLog{})
	if action != "" {
		query = query.Where("action = ?", action)
	}
	var logs []model.AuditLog
	err := query.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// CleanOldLogs removes audit logs older than days.
func (s *AuditLogService) CleanOldLogs(days int) error {
	if days <= 0 {
		return fmt.Errorf("days must be greater than 0")
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	result := database.GetDB().Where("timestamp < ?", cutoff).Delete(&model.AuditLog{})
	if result.Error != nil {
		return result.Error
	}
	logger.Infof("Cleaned %d old audit logs (older than %d days)", result.RowsAffected, days)
	return nil
}
