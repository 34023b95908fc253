package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gatekeeper/internal/server/models"
	"github.com/dmitrijs2005/gatekeeper/internal/server/services"
)

type tokenResponse struct {
	SessionToken string `json:"session_token"`
}

type licenseKeyView struct {
	LicenseKey    string    `json:"license_key"`
	ApplicationID string    `json:"application_id"`
	CreatedAt     time.Time `json:"created_at"`
}

type userSummaryView struct {
	UserID   string `json:"user_id"`
	UserName string `json:"username"`
}

type userView struct {
	UserID         string    `json:"user_id"`
	UserName       string    `json:"username"`
	Email          string    `json:"email"`
	ApplicationID  string    `json:"application_id"`
	LastLoginIP    *string   `json:"last_login_ip"`
	RegistrationIP *string   `json:"registration_ip"`
	CreatedAt      time.Time `json:"created_at"`
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Warn(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.bind(w, r, &req) {
		return
	}
	token, err := h.service.Login(r.Context(), req.UserName, req.Password, clientIP(r, h.trustProxy))
	if err != nil {
		h.writeMappedError(r.Context(), w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{SessionToken: token})
}

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !h.bind(w, r, &req) {
		return
	}
	token, err := h.service.AdminLogin(r.Context(), req.UserName, req.Password)
	if err != nil {
		h.writeMappedError(r.Context(), w, "admin_login", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{SessionToken: token})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), tokenFromContext(r.Context())); err != nil {
		h.writeMappedError(r.Context(), w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.AdminLogout(r.Context(), tokenFromContext(r.Context())); err != nil {
		h.writeMappedError(r.Context(), w, "admin_logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.bind(w, r, &req) {
		return
	}
	userID, err := h.service.Register(r.Context(), services.RegisterRequest{
		UserName:        req.UserName,
		Password:        req.Password,
		RegistrationKey: req.RegistrationKey,
		Email:           req.Email,
		ClientIP:        clientIP(r, h.trustProxy),
	})
	if err != nil {
		h.writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

func (h *Handler) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.ChangePassword(r.Context(), tokenFromContext(r.Context()), req.NewPassword); err != nil {
		h.writeMappedError(r.Context(), w, "update_password", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) generateLicenseKey(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if !h.bind(w, r, &req) {
		return
	}
	key, err := h.service.IssueLicenseKey(r.Context(), tokenFromContext(r.Context()), req.ApplicationID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "generate_license_key", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"license_key": key})
}

func (h *Handler) deleteLicenseKey(w http.ResponseWriter, r *http.Request) {
	var req licenseKeyRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.RevokeLicenseKey(r.Context(), tokenFromContext(r.Context()), req.LicenseKey); err != nil {
		h.writeMappedError(r.Context(), w, "delete_license_key", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) licenseKeys(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("application_id")
	keys, err := h.service.ListLicenseKeys(r.Context(), tokenFromContext(r.Context()), appID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "license_keys", err)
		return
	}
	out := make([]licenseKeyView, 0, len(keys))
	for _, k := range keys {
		out = append(out, licenseKeyView{LicenseKey: k.ID, ApplicationID: k.ApplicationID, CreatedAt: k.CreatedAt})
	}
	writeJSON(w, http.StatusOK, map[string]any{"license_keys": out})
}

func (h *Handler) viewUsers(w http.ResponseWriter, r *http.Request) {
	// empty application_id means the admin's own application
	appID := r.URL.Query().Get("application_id")
	users, err := h.service.ListUsers(r.Context(), tokenFromContext(r.Context()), appID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "view_users", err)
		return
	}
	out := make([]userSummaryView, 0, len(users))
	for _, u := range users {
		out = append(out, userSummaryView{UserID: u.ID, UserName: u.UserName})
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": out})
}

func (h *Handler) viewUser(w http.ResponseWriter, r *http.Request) {
	q := userRequest{UserID: r.URL.Query().Get("user_id")}
	if !h.check(w, &q) {
		return
	}
	u, err := h.service.ViewUser(r.Context(), tokenFromContext(r.Context()), q.UserID)
	if err != nil {
		h.writeMappedError(r.Context(), w, "view_user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserView(u)})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if !h.bind(w, r, &req) {
		return
	}
	if err := h.service.RemoveUser(r.Context(), tokenFromContext(r.Context()), req.UserID); err != nil {
		h.writeMappedError(r.Context(), w, "delete_user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toUserView(u *models.User) userView {
	return userView{
		UserID:         u.ID,
		UserName:       u.UserName,
		Email:          u.Email,
		ApplicationID:  u.ApplicationID,
		LastLoginIP:    u.LastLoginIP,
		RegistrationIP: u.RegistrationIP,
		CreatedAt:      u.CreatedAt,
	}
}
