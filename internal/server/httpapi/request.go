package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
	"github.com/go-playground/validator/v10"
)

type credentialsRequest struct {
	UserName string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	UserName        string `json:"username" validate:"required,max=64"`
	Password        string `json:"password" validate:"required"`
	RegistrationKey string `json:"registration_key" validate:"required"`
	Email           string `json:"email" validate:"omitempty,email"`
}

type updatePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

type applicationRequest struct {
	ApplicationID string `json:"application_id" validate:"required"`
}

type licenseKeyRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
}

type userRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

var errEmptyBody = errors.New("request body is required")

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON value")
	}
	return nil
}

// bind decodes the JSON body into dst and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (h *Handler) bind(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeBody(r, dst); err != nil {
		if errors.Is(err, errEmptyBody) {
			writeError(w, http.StatusBadRequest, "MISSING_FIELD", err.Error())
			return false
		}
		writeError(w, http.StatusBadRequest, "MALFORMED_BODY", "request body is not valid JSON")
		return false
	}
	return h.check(w, dst)
}

// check validates dst and writes a 400 for the first failing field.
func (h *Handler) check(w http.ResponseWriter, dst any) bool {
	err := h.validate.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			writeError(w, http.StatusBadRequest, "MISSING_FIELD",
				fmt.Sprintf("%s: %s", common.ErrorMissingField, fe.Field()))
			return false
		}
		writeError(w, http.StatusBadRequest, "INVALID_FIELD",
			fmt.Sprintf("invalid field: %s", fe.Field()))
		return false
	}
	writeError(w, http.StatusBadRequest, "INVALID_FIELD", err.Error())
	return false
}

// clientIP returns the peer address from RemoteAddr. With trustProxy set the
// first X-Forwarded-For hop wins; the header is client-controlled otherwise.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
