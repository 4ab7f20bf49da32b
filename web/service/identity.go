package service

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/hivedesk/portal/config"
	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
	"github.com/hivedesk/portal/util/crypto"
	ldaputil "github.com/hivedesk/portal/util/ldap"

	"github.com/go-ldap/ldap/v3"
	"gorm.io/gorm"
)

// LocalIdentity verifies credentials against the accounts table.
type LocalIdentity struct {
	db *gorm.DB
}

func NewLocalIdentity(db *gorm.DB) *LocalIdentity {
	return &LocalIdentity{db: db}
}

func (p *LocalIdentity) Verify(ctx context.Context, email, password string) (Identity, error) {
	var account model.Account
	err := p.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		First(&account).
		Error
	if database.IsNotFound(err) {
		return Identity{}, &AuthError{Kind: AuthInvalidCredentials}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return Identity{}, &AuthError{Kind: AuthNetwork, Err: err}
		}
		logger.Warning("check account err:", err)
		return Identity{}, &AuthError{Kind: AuthUnknown, Err: err}
	}
	if !crypto.CheckPasswordHash(account.PasswordHash, password) {
		return Identity{}, &AuthError{Kind: AuthInvalidCredentials}
	}
	return Identity{UID: account.Id, Email: account.Email}, nil
}

// LDAPIdentity verifies credentials by binding as the user.
type LDAPIdentity struct {
	cfg ldaputil.Config
}

func NewLDAPIdentity(c config.LDAPConfig) *LDAPIdentity {
	return &LDAPIdentity{cfg: ldaputil.Config{
		Host:       c.Host,
		Port:       c.Port,
		UseTLS:     c.UseTLS,
		BindDN:     c.BindDN,
		Password:   c.Password,
		BaseDN:     c.BaseDN,
		UserFilter: c.UserFilter,
		UserAttr:   c.UserAttr,
	}}
}

func (p *LDAPIdentity) Verify(ctx context.Context, email, password string) (Identity, error) {
	type result struct {
		entry *ldaputil.Entry
		err   error
	}
	done := make(chan result, 1)
	go func() {
		e, err := ldaputil.Authenticate(p.cfg, email, password)
		done <- result{e, err}
	}()

	var r result
	select {
	case <-ctx.Done():
		return Identity{}, &AuthError{Kind: AuthNetwork, Err: ctx.Err()}
	case r = <-done:
	}

	if r.err != nil {
		return Identity{}, classifyLDAPError(r.err)
	}
	mail := r.entry.Mail
	if mail == "" {
		mail = email
	}
	return Identity{UID: r.entry.UID, Email: mail}, nil
}

func classifyLDAPError(err error) *AuthError {
	if errors.Is(err, ldaputil.ErrInvalidCredentials) || errors.Is(err, ldaputil.ErrUserNotFound) {
		return &AuthError{Kind: AuthInvalidCredentials, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || ldap.IsErrorWithCode(err, ldap.ErrorNetwork) {
		return &AuthError{Kind: AuthNetwork, Err: err}
	}
	logger.Warning("ldap sign-in err:", err)
	return &AuthError{Kind: AuthUnknown, Err: err}
}

// NewIdentityProvider returns the provider selected by configuration.
func NewIdentityProvider(t config.IdentityType) IdentityProvider {
	if t == config.IdentityLDAP {
		return NewLDAPIdentity(config.GetLDAPConfig())
	}
	return NewLocalIdentity(database.GetDB())
}
