package database

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/hivedesk/portal/config"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/util/crypto"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

type demoAccount struct {
	email    string
	name     string
	password string
}

// Seeded on first start so the login page hints work out of the box.
var demoAccounts = []demoAccount{
	{"hr@company.com", "HR Demo", "password"},
	{"employee@company.com", "Employee Demo", "password"},
	{"john.hr@company.com", "John HR", "password123"},
	{"jane.employee@company.com", "Jane Employee", "password123"},
	{"bob.employee@company.com", "Bob Employee", "password123"},
	{"alice.employee@company.com", "Alice Employee", "password123"},
}

// DemoCredential is a seeded login shown as a hint on the login page.
type DemoCredential struct {
	Email    string
	Password string
}

// DemoCredentials returns the first seeded login of each role.
func DemoCredentials() []DemoCredential {
	return []DemoCredential{
		{demoAccounts[0].email, demoAccounts[0].password},
		{demoAccounts[1].email, demoAccounts[1].password},
	}
}

func initModels() error {
	models := []any{
		&model.Account{},
		&model.Employee{},
		&model.AuditLog{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			log.Printf("Error auto migrating model: %v", err)
			return err
		}
	}
	return nil
}

func initAccounts() error {
	empty, err := isTableEmpty("accounts")
	if err != nil {
		log.Printf("Error checking if accounts table is empty: %v", err)
		return err
	}
	if !empty {
		return nil
	}
	for _, d := range demoAccounts {
		if _, err := CreateAccount(d.email, d.name, d.password); err != nil {
			return err
		}
	}
	return nil
}

// CreateAccount stores a local identity with a bcrypt hashed password.
func CreateAccount(email, name, password string) (*model.Account, error) {
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		return nil, err
	}
	account := &model.Account{
		Id:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         name,
		PasswordHash: hash,
	}
	if err := db.Create(account).Error; err != nil {
		return nil, err
	}
	return account, nil
}

func isTableEmpty(tableName string) (bool, error) {
	var count int64
	err := db.Table(tableName).Count(&count).Error
	return count == 0, err
}

func InitDB(dbPath string) error {
	dir := path.Dir(dbPath)
	err := os.MkdirAll(dir, fs.ModePerm)
	if err != nil {
		return err
	}

	var gormLogger logger.Interface
	if config.IsDebug() {
		gormLogger = logger.Default
	} else {
		gormLogger = logger.Discard
	}

	c := &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	}

	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err = gorm.Open(sqlite.Open(dsn), c)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if _, err = sqlDB.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return err
	}

	if err := initModels(); err != nil {
		return err
	}
	return initAccounts()
}

func CloseDB() error {
	if db != nil {
		if err := Checkpoint(); err != nil {
			log.Printf("error executing checkpoint: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

func GetDB() *gorm.DB {
	return db
}

func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Checkpoint folds the WAL back into the database file.
func Checkpoint() error {
	if db == nil {
		return nil
	}
	return db.Exec("PRAGMA wal_checkpoint;").Error
}
