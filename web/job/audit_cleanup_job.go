// Package job holds the portal's scheduled maintenance jobs.
package job

import (
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/web/service"
)

// AuditCleanupJob deletes audit entries older than the retention period.
type AuditCleanupJob struct {
	auditService  service.AuditLogService
	retentionDays int
}

func NewAuditCleanupJob(retentionDays int) *AuditCleanupJob {
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &AuditCleanupJob{retentionDays: retentionDays}
}

func (j *AuditCleanupJob) Run() {
	logger.Debug("Audit cleanup job started")

	if err := j.auditService.CleanOldLogs(j.retentionDays); err != nil {
		logger.Warning("Failed to clean old audit logs:", err)
		return
	}
	logger.Debugf("Audit cleanup completed (retention: %d days)", j.retentionDays)
}
