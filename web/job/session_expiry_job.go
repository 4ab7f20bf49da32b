package job

import (
	"time"

	"github.com/hivedesk/portal/logger"
)

type sessionExpirer interface {
	ExpireSessions(now time.Time) int
}

// SessionExpiryJob drops signed-in users whose session outlived its max
// age, so their open tabs are told to sign in again.
type SessionExpiryJob struct {
	gateway sessionExpirer
	now     func() time.Time
}

func NewSessionExpiryJob(gateway sessionExpirer) *SessionExpiryJob {
	return &SessionExpiryJob{gateway: gateway, now: time.Now}
}

func (j *SessionExpiryJob) Run() {
	if n := j.gateway.ExpireSessions(j.now()); n > 0 {
		logger.Infof("Expired %d sessions", n)
	}
}
