// Package httpapi exposes the registration workflows over JSON/HTTP.
package httpapi

import (
	"context"
	"reflect"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/logging"
	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
	"github.com/go-playground/validator/v10"
)

// Service is the core the adapter drives. services.RegistrationService
// implements it.
type Service interface {
	Login(ctx context.Context, username, password, clientIP string) (string, error)
	AdminLogin(ctx context.Context, username, password string) (string, error)
	Logout(ctx context.Context, token string) error
	AdminLogout(ctx context.Context, token string) error
	Register(ctx context.Context, req services.RegisterRequest) (string, error)
	ChangePassword(ctx context.Context, userToken, newPassword string) error
	IssueLicenseKey(ctx context.Context, adminToken, applicationID string) (string, error)
	RevokeLicenseKey(ctx context.Context, adminToken, keyID string) error
	ListLicenseKeys(ctx context.Context, adminToken, applicationID string) ([]models.LicenseKey, error)
	ListUsers(ctx context.Context, adminToken, applicationID string) ([]models.UserSummary, error)
	ViewUser(ctx context.Context, adminToken, userID string) (*models.User, error)
	RemoveUser(ctx context.Context, adminToken, userID string) error
}

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	service  Service
	db       Pinger
	logger   logging.Logger
	validate *validator.Validate

	// trustProxy lets X-Forwarded-For name the client address.
	trustProxy bool
}

func NewHandler(service Service, db Pinger, logger logging.Logger, trustProxy bool) *Handler {
	if logger == nil {
		logger = logging.Nop{}
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their wire names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		service:    service,
		db:         db,
		logger:     logger.With("module", "http"),
		validate:   v,
		trustProxy: trustProxy,
	}
}
