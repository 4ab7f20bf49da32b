package config

import (
	"fmt"
	"os"
	"strings"
)

// StoreType represents the backend holding employee records
type StoreType string

const (
	StoreTypeSQLite   StoreType = "sqlite"
	StoreTypeDynamoDB StoreType = "dynamodb"
)

// StoreConfig holds record store configuration
type StoreConfig struct {
	Type     StoreType      `json:"type"`
	DynamoDB DynamoDBConfig `json:"dynamodb"`
}

// DynamoDBConfig holds DynamoDB specific configuration
type DynamoDBConfig struct {
	Table    string `json:"table"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"` // set for DynamoDB Local
}

// LDAPConfig holds directory settings used by the ldap identity provider
type LDAPConfig struct {
	Host       string `json:"host"`
	Port       int    `json:"port"`
	UseTLS     bool   `json:"useTLS"`
	BindDN     string `json:"bindDN"`
	Password   string `json:"password"`
	BaseDN     string `json:"baseDN"`
	UserFilter string `json:"userFilter"`
	UserAttr   string `json:"userAttr"`
}

// GetStoreConfig reads the record store configuration from the environment
func GetStoreConfig() *StoreConfig {
	c := &StoreConfig{
		Type: StoreType(strings.ToLower(os.Getenv("PORTAL_RECORD_STORE"))),
		DynamoDB: DynamoDBConfig{
			Table:    os.Getenv("PORTAL_DYNAMODB_TABLE"),
			Region:   os.Getenv("PORTAL_DYNAMODB_REGION"),
			Endpoint: os.Getenv("PORTAL_DYNAMODB_ENDPOINT"),
		},
	}
	if c.Type == "" {
		c.Type = StoreTypeSQLite
	}
	if c.DynamoDB.Table == "" {
		c.DynamoDB.Table = "employees"
	}
	if c.DynamoDB.Region == "" {
		c.DynamoDB.Region = "us-east-1"
	}
	return c
}

// Validate checks the record store configuration
func (c *StoreConfig) Validate() error {
	switch c.Type {
	case StoreTypeSQLite:
		return nil
	case StoreTypeDynamoDB:
		if c.DynamoDB.Table == "" {
			return fmt.Errorf("DynamoDB table cannot be empty")
		}
		return nil
	default:
		return fmt.Errorf("unsupported record store: %s", c.Type)
	}
}

// IsDynamoDB returns true if records live in DynamoDB
func (c *StoreConfig) IsDynamoDB() bool {
	return c.Type == StoreTypeDynamoDB
}

// GetLDAPConfig reads directory settings from the environment
func GetLDAPConfig() LDAPConfig {
	return LDAPConfig{
		Host:       os.Getenv("PORTAL_LDAP_HOST"),
		Port:       getInt("PORTAL_LDAP_PORT", 389),
		UseTLS:     os.Getenv("PORTAL_LDAP_TLS") == "true",
		BindDN:     os.Getenv("PORTAL_LDAP_BIND_DN"),
		Password:   os.Getenv("PORTAL_LDAP_PASSWORD"),
		BaseDN:     os.Getenv("PORTAL_LDAP_BASE_DN"),
		UserFilter: os.Getenv("PORTAL_LDAP_USER_FILTER"),
		UserAttr:   os.Getenv("PORTAL_LDAP_USER_ATTR"),
	}
}
