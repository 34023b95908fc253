// Package services contains the server-side business logic. IdentityStore and
// SessionRegistry own the persistent state, Gate authorizes callers, and
// RegistrationService composes them into the public workflows.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/dmitrijs2005/gatekeeper/internal/cryptox"
	"github.com/dmitrijs2005/gatekeeper/internal/dbx"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// newID generates entity ids.
var newID = uuid.NewString

// IdentityStore owns applications, license keys, users and admins, and
// verifies credentials. Passwords are only ever stored as digests.
type IdentityStore struct {
	db          dbx.DBTX
	repomanager repomanager.RepositoryManager
	hasher      cryptox.PasswordHasher
	dummyDigest string
}

// NewIdentityStore builds a store on db. hasher produces new digests;
// verification accepts any supported digest format.
func NewIdentityStore(db dbx.DBTX, m repomanager.RepositoryManager, hasher cryptox.PasswordHasher) (*IdentityStore, error) {
	// Verified against when the username is unknown, so that a miss costs
	// the same as a wrong password.
	seed, err := common.MakeRandHexString(16)
	if err != nil {
		return nil, fmt.Errorf("error preparing dummy digest: %w", err)
	}
	dummy, err := hasher.Hash(seed)
	if err != nil {
		return nil, fmt.Errorf("error preparing dummy digest: %w", err)
	}
	return &IdentityStore{db: db, repomanager: m, hasher: hasher, dummyDigest: dummy}, nil
}

// Bind returns a copy of the store that runs every query on tx.
func (s *IdentityStore) Bind(tx dbx.DBTX) *IdentityStore {
	c := *s
	c.db = tx
	return &c
}

func (s *IdentityStore) CreateApplication(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", common.ErrorMissingField
	}
	app := &models.Application{ID: newID(), Name: name}
	if err := s.repomanager.Applications(s.db).Create(ctx, app); err != nil {
		return "", err
	}
	return app.ID, nil
}

// CreateLicenseKey issues a registration key for applicationID.
// It fails with common.ErrorInvalidApplication when the application is unknown.
func (s *IdentityStore) CreateLicenseKey(ctx context.Context, applicationID string) (string, error) {
	key := &models.LicenseKey{ID: newID(), ApplicationID: applicationID}
	if err := s.repomanager.LicenseKeys(s.db).Create(ctx, key); err != nil {
		return "", err
	}
	return key.ID, nil
}

func (s *IdentityStore) DeleteLicenseKey(ctx context.Context, keyID string) error {
	return s.repomanager.LicenseKeys(s.db).Delete(ctx, keyID)
}

// ResolveApplication returns the application a key belongs to.
func (s *IdentityStore) ResolveApplication(ctx context.Context, keyID string) (string, error) {
	key, err := s.repomanager.LicenseKeys(s.db).Find(ctx, keyID)
	if err != nil {
		return "", err
	}
	return key.ApplicationID, nil
}

// ConsumeLicenseKey deletes the key and returns the application it belonged to.
func (s *IdentityStore) ConsumeLicenseKey(ctx context.Context, keyID string) (string, error) {
	return s.repomanager.LicenseKeys(s.db).Consume(ctx, keyID)
}

func (s *IdentityStore) LicenseKeyExists(ctx context.Context, keyID string) (bool, error) {
	_, err := s.repomanager.LicenseKeys(s.db).Find(ctx, keyID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *IdentityStore) ListLicenseKeys(ctx context.Context, applicationID string) ([]models.LicenseKey, error) {
	return s.repomanager.LicenseKeys(s.db).ListByApplication(ctx, applicationID)
}

// CreateUser stores a new user of applicationID. registrationIP may be empty.
func (s *IdentityStore) CreateUser(ctx context.Context, username, password, applicationID, email, registrationIP string) (string, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	user := &models.User{
		ID:            newID(),
		UserName:      username,
		PasswordHash:  digest,
		Email:         email,
		ApplicationID: applicationID,
	}
	if registrationIP != "" {
		user.RegistrationIP = &registrationIP
	}
	if err := s.repomanager.Users(s.db).Create(ctx, user); err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *IdentityStore) CreateAdmin(ctx context.Context, username, password, applicationID, email string) (string, error) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("error hashing password: %w", err)
	}
	admin := &models.Admin{
		ID:            newID(),
		UserName:      username,
		PasswordHash:  digest,
		Email:         email,
		ApplicationID: applicationID,
	}
	if err := s.repomanager.Admins(s.db).Create(ctx, admin); err != nil {
		return "", err
	}
	return admin.ID, nil
}

func (s *IdentityStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	return s.repomanager.Users(s.db).GetByID(ctx, userID)
}

func (s *IdentityStore) GetAdmin(ctx context.Context, adminID string) (*models.Admin, error) {
	return s.repomanager.Admins(s.db).GetByID(ctx, adminID)
}

func (s *IdentityStore) GetUserID(ctx context.Context, username string) (string, error) {
	return s.principalID(ctx, models.ClassUser, username)
}

func (s *IdentityStore) GetAdminID(ctx context.Context, username string) (string, error) {
	return s.principalID(ctx, models.ClassAdmin, username)
}

func (s *IdentityStore) principalID(ctx context.Context, class models.PrincipalClass, username string) (string, error) {
	c, err := s.repomanager.Principals(s.db, class).Credentials(ctx, username)
	if err != nil {
		return "", err
	}
	return c.PrincipalID, nil
}

// ListUsers returns the users of applicationID ordered by username.
func (s *IdentityStore) ListUsers(ctx context.Context, applicationID string) ([]models.UserSummary, error) {
	return s.repomanager.Users(s.db).ListByApplication(ctx, applicationID)
}

func (s *IdentityStore) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	return s.repomanager.Users(s.db).UpdatePassword(ctx, userID, digest)
}

func (s *IdentityStore) UpdateLastLoginIP(ctx context.Context, userID, ip string) error {
	return s.repomanager.Users(s.db).UpdateLastLoginIP(ctx, userID, ip)
}

// DeleteUser removes the user row. The schema cascades its sessions.
func (s *IdentityStore) DeleteUser(ctx context.Context, userID string) error {
	return s.repomanager.Users(s.db).Delete(ctx, userID)
}

func (s *IdentityStore) VerifyUserCredentials(ctx context.Context, username, password string) (string, bool, error) {
	return s.verify(ctx, models.ClassUser, username, password)
}

func (s *IdentityStore) VerifyAdminCredentials(ctx context.Context, username, password string) (string, bool, error) {
	return s.verify(ctx, models.ClassAdmin, username, password)
}

// verify reports whether password matches the stored digest of username.
// An unknown username and a wrong password give the same answer.
func (s *IdentityStore) verify(ctx context.Context, class models.PrincipalClass, username, password string) (string, bool, error) {
	c, err := s.repomanager.Principals(s.db, class).Credentials(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			cryptox.VerifyPassword(password, s.dummyDigest)
			return "", false, nil
		}
		return "", false, err
	}
	if !cryptox.VerifyPassword(password, c.PasswordHash) {
		return "", false, nil
	}
	return c.PrincipalID, true, nil
}
