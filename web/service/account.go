package service

import (
	"context"
	"errors"
	"strings"

	"github.com/hivedesk/portal/database"
	"github.com/hivedesk/portal/database/model"
	"github.com/hivedesk/portal/logger"
)

// ErrEmailTaken is returned when an account already uses the email.
var ErrEmailTaken = errors.New("email already registered")

// AccountService manages local sign-in accounts. The role of a new account
// follows from its email, as for every sign-in.
type AccountService struct{}

// Register creates a local account. Email and password are required and the
// email must not be in use, ignoring case.
func (s *AccountService) Register(ctx context.Context, email, name, password string) (*model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" {
		return nil, &ValidationError{Field: "email"}
	}
	if password == "" {
		return nil, &ValidationError{Field: "password"}
	}

	var count int64
	err := database.GetDB().WithContext(ctx).Model(&model.Account{}).Where("email = ?", email).Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	account, err := database.CreateAccount(email, name, password)
	if err != nil {
		return nil, err
	}
	logger.Infof("account %s registered as %s", account.Email, DeriveRole(account.Email))
	return account, nil
}
