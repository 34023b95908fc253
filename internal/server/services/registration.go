package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/config"
	"github.com/dmitrijs2005/gatekeeper/internal/server/metrics"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
)

// RegisterRequest carries a self-registration.
type RegisterRequest struct {
	UserName        string
	Password        string
	RegistrationKey string
	Email           string
	ClientIP        string
}

// RegistrationService implements the public workflows: logins, self
// registration with a license key, and the admin-gated management calls.
// Multi-step operations run in one transaction.
type RegistrationService struct {
	db          dbx.TxBeginner
	identity    *IdentityStore
	sessions    *SessionRegistry
	gate        *Gate
	consumeKeys bool
	logger      logging.Logger
}

func NewRegistrationService(db dbx.TxBeginner, identity *IdentityStore, sessions *SessionRegistry, gate *Gate, cfg *config.Config, logger logging.Logger) *RegistrationService {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &RegistrationService{
		db:          db,
		identity:    identity,
		sessions:    sessions,
		gate:        gate,
		consumeKeys: cfg.ConsumeRegistrationKeys,
		logger:      logger.With("module", "registration"),
	}
}

// Login checks user credentials and opens a session. A failed check writes
// nothing.
func (s *RegistrationService) Login(ctx context.Context, username, password, clientIP string) (string, error) {
	userID, ok, err := s.identity.VerifyUserCredentials(ctx, username, password)
	if err != nil {
		return "", s.fail(ctx, "login", err)
	}
	if !ok {
		metrics.ObserveLogin(models.ClassUser.String(), false)
		return "", common.ErrorInvalidCredentials
	}

	var token string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if clientIP != "" {
			if err := s.identity.Bind(tx).UpdateLastLoginIP(ctx, userID, clientIP); err != nil {
				return err
			}
		}
		var err error
		token, err = s.sessions.Bind(tx).CreateSession(ctx, userID)
		return err
	})
	if errors.Is(err, common.ErrorNotFound) {
		// the user was removed after the password check
		metrics.ObserveLogin(models.ClassUser.String(), false)
		return "", common.ErrorInvalidCredentials
	}
	if err != nil {
		return "", s.fail(ctx, "login", err)
	}

	metrics.ObserveLogin(models.ClassUser.String(), true)
	s.logger.Info(ctx, "user logged in", "user_id", userID)
	return token, nil
}

func (s *RegistrationService) AdminLogin(ctx context.Context, username, password string) (string, error) {
	adminID, ok, err := s.identity.VerifyAdminCredentials(ctx, username, password)
	if err != nil {
		return "", s.fail(ctx, "admin login", err)
	}
	if !ok {
		metrics.ObserveLogin(models.ClassAdmin.String(), false)
		return "", common.ErrorInvalidCredentials
	}

	token, err := s.sessions.CreateAdminSession(ctx, adminID)
	if errors.Is(err, common.ErrorNotFound) {
		metrics.ObserveLogin(models.ClassAdmin.String(), false)
		return "", common.ErrorInvalidCredentials
	}
	if err != nil {
		return "", s.fail(ctx, "admin login", err)
	}

	metrics.ObserveLogin(models.ClassAdmin.String(), true)
	s.logger.Info(ctx, "admin logged in", "admin_id", adminID)
	return token, nil
}

// Logout ends a user session. Unknown tokens are ignored.
func (s *RegistrationService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return s.fail(ctx, "logout", err)
	}
	return nil
}

func (s *RegistrationService) AdminLogout(ctx context.Context, token string) error {
	if err := s.sessions.DeleteAdminSession(ctx, token); err != nil {
		return s.fail(ctx, "admin logout", err)
	}
	return nil
}

// Register creates a user in the application that owns req.RegistrationKey.
// An unknown key yields common.ErrorInvalidKey and no user row.
func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var userID string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		identity := s.identity.Bind(tx)

		var (
			applicationID string
			err           error
		)
		if s.consumeKeys {
			applicationID, err = identity.ConsumeLicenseKey(ctx, req.RegistrationKey)
		} else {
			applicationID, err = identity.ResolveApplication(ctx, req.RegistrationKey)
		}
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorInvalidKey
			}
			return err
		}

		userID, err = identity.CreateUser(ctx, req.UserName, req.Password, applicationID, req.Email, req.ClientIP)
		return err
	})
	if err != nil {
		metrics.ObserveRegistration(false)
		return "", s.fail(ctx, "register", err)
	}

	metrics.ObserveRegistration(true)
	s.logger.Info(ctx, "user registered", "user_id", userID)
	return userID, nil
}

// IssueLicenseKey creates a registration key for applicationID.
func (s *RegistrationService) IssueLicenseKey(ctx context.Context, adminToken, applicationID string) (string, error) {
	adminID, err := s.gate.RequireAdmin(ctx, adminToken)
	if err != nil {
		return "", s.fail(ctx, "issue license key", err)
	}
	keyID, err := s.identity.CreateLicenseKey(ctx, applicationID)
	if err != nil {
		return "", s.fail(ctx, "issue license key", err)
	}
	s.logger.Info(ctx, "license key issued", "admin_id", adminID, "application_id", applicationID)
	return keyID, nil
}

// RevokeLicenseKey deletes a key, failing with common.ErrorNotFound when it
// is already gone.
func (s *RegistrationService) RevokeLicenseKey(ctx context.Context, adminToken, keyID string) error {
	adminID, err := s.gate.RequireAdmin(ctx, adminToken)
	if err != nil {
		return s.fail(ctx, "revoke license key", err)
	}
	exists, err := s.identity.LicenseKeyExists(ctx, keyID)
	if err != nil {
		return s.fail(ctx, "revoke license key", err)
	}
	if !exists {
		return common.ErrorNotFound
	}
	if err := s.identity.DeleteLicenseKey(ctx, keyID); err != nil {
		return s.fail(ctx, "revoke license key", err)
	}
	s.logger.Info(ctx, "license key revoked", "admin_id", adminID)
	return nil
}

// ListLicenseKeys lists the keys of applicationID, defaulting to the admin's
// own application.
func (s *RegistrationService) ListLicenseKeys(ctx context.Context, adminToken, applicationID string) ([]models.LicenseKey, error) {
	applicationID, err := s.adminScope(ctx, adminToken, applicationID)
	if err != nil {
		return nil, s.fail(ctx, "list license keys", err)
	}
	keys, err := s.identity.ListLicenseKeys(ctx, applicationID)
	if err != nil {
		return nil, s.fail(ctx, "list license keys", err)
	}
	return keys, nil
}

// ChangePassword sets a new password for the user behind userToken and ends
// all of that user's sessions, the presented one included.
func (s *RegistrationService) ChangePassword(ctx context.Context, userToken, newPassword string) error {
	userID, err := s.gate.RequireUser(ctx, userToken)
	if err != nil {
		return s.fail(ctx, "change password", err)
	}

	var tokens []string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.identity.Bind(tx).UpdatePassword(ctx, userID, newPassword); err != nil {
			return err
		}
		var err error
		tokens, err = s.sessions.Bind(tx).deleteAllForPrincipal(ctx, models.ClassUser, userID)
		return err
	})
	if err != nil {
		return s.fail(ctx, "change password", err)
	}
	s.sessions.forget(ctx, models.ClassUser, tokens...)

	s.logger.Info(ctx, "password changed", "user_id", userID, "sessions_ended", len(tokens))
	return nil
}

// RemoveUser deletes a user and every session it holds.
func (s *RegistrationService) RemoveUser(ctx context.Context, adminToken, userID string) error {
	adminID, err := s.gate.RequireAdmin(ctx, adminToken)
	if err != nil {
		return s.fail(ctx, "remove user", err)
	}

	var tokens []string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		tokens, err = s.sessions.Bind(tx).deleteAllForPrincipal(ctx, models.ClassUser, userID)
		if err != nil {
			return err
		}
		return s.identity.Bind(tx).DeleteUser(ctx, userID)
	})
	if err != nil {
		return s.fail(ctx, "remove user", err)
	}
	s.sessions.forget(ctx, models.ClassUser, tokens...)

	s.logger.Info(ctx, "user removed", "admin_id", adminID, "user_id", userID)
	return nil
}

// ListUsers lists the users of applicationID, defaulting to the admin's own
// application.
func (s *RegistrationService) ListUsers(ctx context.Context, adminToken, applicationID string) ([]models.UserSummary, error) {
	applicationID, err := s.adminScope(ctx, adminToken, applicationID)
	if err != nil {
		return nil, s.fail(ctx, "list users", err)
	}
	users, err := s.identity.ListUsers(ctx, applicationID)
	if err != nil {
		return nil, s.fail(ctx, "list users", err)
	}
	return users, nil
}

func (s *RegistrationService) ViewUser(ctx context.Context, adminToken, userID string) (*models.User, error) {
	if _, err := s.gate.RequireAdmin(ctx, adminToken); err != nil {
		return nil, s.fail(ctx, "view user", err)
	}
	user, err := s.identity.GetUser(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, "view user", err)
	}
	return user, nil
}

// CreateApplication and CreateAdmin bootstrap a deployment. They take no
// session and are not exposed over HTTP.
func (s *RegistrationService) CreateApplication(ctx context.Context, name string) (string, error) {
	id, err := s.identity.CreateApplication(ctx, name)
	if err != nil {
		return "", s.fail(ctx, "create application", err)
	}
	s.logger.Info(ctx, "application created", "application_id", id, "name", name)
	return id, nil
}

func (s *RegistrationService) CreateAdmin(ctx context.Context, username, password, applicationID, email string) (string, error) {
	id, err := s.identity.CreateAdmin(ctx, username, password, applicationID, email)
	if err != nil {
		return "", s.fail(ctx, "create admin", err)
	}
	s.logger.Info(ctx, "admin created", "admin_id", id, "application_id", applicationID)
	return id, nil
}

// adminScope authorizes adminToken and resolves an empty applicationID to
// the admin's own application.
func (s *RegistrationService) adminScope(ctx context.Context, adminToken, applicationID string) (string, error) {
	adminID, err := s.gate.RequireAdmin(ctx, adminToken)
	if err != nil {
		return "", err
	}
	if applicationID != "" {
		return applicationID, nil
	}
	admin, err := s.identity.GetAdmin(ctx, adminID)
	if err != nil {
		return "", err
	}
	return admin.ApplicationID, nil
}

var domainErrors = []error{
	common.ErrorNotFound,
	common.ErrorAlreadyExists,
	common.ErrorMissingField,
	common.ErrorInvalidCredentials,
	common.ErrorUnauthorized,
	common.ErrorInvalidKey,
	common.ErrorInvalidApplication,
}

// fail passes domain errors through and hides everything else behind
// common.ErrorInternal after logging it.
func (s *RegistrationService) fail(ctx context.Context, op string, err error) error {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return d
		}
	}
	s.logger.Error(ctx, op+" failed", "error", err)
	return common.ErrorInternal
}
