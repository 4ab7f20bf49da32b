package ldaputil

import (
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/go-ldap/ldap/v3"
)

var (
	ErrUserNotFound       = errors.New("ldap: user not found")
	ErrInvalidCredentials = errors.New("ldap: invalid credentials")
)

type Config struct {
	Host       string
	Port       int
	UseTLS     bool
	BindDN     string
	Password   string
	BaseDN     string
	UserFilter string
	UserAttr   string
}

// Entry is the subset of a directory entry the portal cares about.
type Entry struct {
	DN   string
	Mail string
	Name string
	UID  string
}

func dial(cfg Config) (*ldap.Conn, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	if cfg.UseTLS {
		return ldap.DialURL("ldaps://"+addr, ldap.DialWithTLSConfig(&tls.Config{ServerName: cfg.Host}))
	}
	return ldap.DialURL("ldap://" + addr)
}

// UserFilter builds the search filter for a login identifier, escaping it.
func UserFilter(cfg Config, login string) string {
	base := cfg.UserFilter
	if base == "" {
		base = "(objectClass=person)"
	}
	attr := cfg.UserAttr
	if attr == "" {
		attr = "mail"
	}
	return fmt.Sprintf("(&%s(%s=%s))", base, attr, ldap.EscapeFilter(login))
}

// Authenticate looks up login with the service account, then binds as the
// found entry with password. Network failures are returned unwrapped so the
// caller can classify them.
func Authenticate(cfg Config, login, password string) (*Entry, error) {
	if password == "" {
		// an empty password would be an unauthenticated bind
		return nil, ErrInvalidCredentials
	}
	conn, err := dial(cfg)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if cfg.BindDN != "" {
		if err := conn.Bind(cfg.BindDN, cfg.Password); err != nil {
			return nil, err
		}
	}

	req := ldap.NewSearchRequest(
		cfg.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 2, 0, false,
		UserFilter(cfg, login),
		[]string{"dn", "mail", "cn", "uid", "entryUUID"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, err
	}
	if len(res.Entries) != 1 {
		return nil, ErrUserNotFound
	}
	e := res.Entries[0]

	if err := conn.Bind(e.DN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	uid := e.GetAttributeValue("entryUUID")
	if uid == "" {
		uid = e.GetAttributeValue("uid")
	}
	if uid == "" {
		uid = e.DN
	}
	return &Entry{
		DN:   e.DN,
		Mail: e.GetAttributeValue("mail"),
		Name: e.GetAttributeValue("cn"),
		UID:  uid,
	}, nil
}
