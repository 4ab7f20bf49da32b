package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

// IdentityType selects the provider that verifies credentials at sign-in.
type IdentityType string

const (
	IdentityLocal IdentityType = "local"
	IdentityLDAP  IdentityType = "ldap"
)

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("PORTAL_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("PORTAL_DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("PORTAL_DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "/etc/hivedesk"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("PORTAL_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

func GetListen() string {
	return os.Getenv("PORTAL_LISTEN")
}

func GetPort() int {
	return getInt("PORTAL_PORT", 8080)
}

// GetDomain returns the only host name the server answers for. Empty
// accepts any host.
func GetDomain() string {
	return os.Getenv("PORTAL_DOMAIN")
}

func GetCertFile() string {
	return os.Getenv("PORTAL_CERT_FILE")
}

func GetKeyFile() string {
	return os.Getenv("PORTAL_KEY_FILE")
}

// GetSessionSecret returns the key used to sign session cookies. An empty
// value makes the server generate a random key on every start.
func GetSessionSecret() string {
	return os.Getenv("PORTAL_SESSION_SECRET")
}

// GetSessionMaxAge returns the session lifetime. Defaults to one day.
func GetSessionMaxAge() time.Duration {
	return time.Duration(getInt("PORTAL_SESSION_MAX_AGE", 1440)) * time.Minute
}

// GetRedisAddr returns the external redis address. Empty means the embedded
// server is used for the session store and rate limiting.
func GetRedisAddr() string {
	return os.Getenv("PORTAL_REDIS_ADDR")
}

func GetIdentityType() IdentityType {
	switch IdentityType(strings.ToLower(os.Getenv("PORTAL_IDENTITY"))) {
	case IdentityLDAP:
		return IdentityLDAP
	default:
		return IdentityLocal
	}
}

func GetLoginRateLimit() int {
	return getInt("PORTAL_LOGIN_RATE_LIMIT", 20)
}

func GetAuditRetentionDays() int {
	return getInt("PORTAL_AUDIT_RETENTION_DAYS", 90)
}

// GetKafkaBrokers returns the comma separated broker list for employee
// lifecycle events. Publishing is disabled when the list is empty.
func GetKafkaBrokers() []string {
	raw := os.Getenv("PORTAL_KAFKA_BROKERS")
	if raw == "" {
		return nil
	}
	brokers := make([]string, 0)
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func GetKafkaTopic() string {
	topic := os.Getenv("PORTAL_KAFKA_TOPIC")
	if topic == "" {
		topic = "hr.employee.lifecycle.v1"
	}
	return topic
}

func GetTimeLocation() (*time.Location, error) {
	loc := os.Getenv("PORTAL_TIME_LOCATION")
	if loc == "" {
		loc = "Local"
	}
	return time.LoadLocation(loc)
}

func getInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
