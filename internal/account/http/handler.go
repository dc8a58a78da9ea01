// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passkeep Contributors

// Package http wires HTTP endpoints for the credential flows.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/passkeep/passkeep/internal/account"
	"github.com/passkeep/passkeep/internal/observability"
	"github.com/passkeep/passkeep/pkg/errutil"
)

// Handler wires HTTP endpoints for registration, login, and password reset.
type Handler struct {
	logger    *slog.Logger
	accounts  *account.Service
	resets    *account.PasswordResetService
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance. metrics may be nil when the
// observability server is disabled.
func NewHandler(logger *slog.Logger, accounts *account.Service, resets *account.PasswordResetService, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		accounts:  accounts,
		resets:    resets,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers credential routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/forgot-password", h.handleForgotPassword)
	r.Get("/change-password/{accountID}", h.showChangePassword)
	r.Post("/change-password", h.handleChangePassword)
}

type registerForm struct {
	Username string `validate:"required,min=3,max=30"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := registerForm{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	if err := h.validator.Struct(form); err != nil {
		h.recordRegistration("invalid")
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	_, err := h.accounts.Register(r.Context(), form.Username, form.Email, form.Password)
	if err != nil {
		switch errCode(err) {
		case "ACCOUNT_EXISTS":
			h.recordRegistration("exists")
			http.Error(w, "User already exists", http.StatusBadRequest)
		case "ACCOUNT_INVALID_USERNAME", "ACCOUNT_INVALID_EMAIL", "ACCOUNT_EMPTY_PASSWORD":
			h.recordRegistration("invalid")
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.recordRegistration("error")
			h.internalError(w, "register", err)
		}
		return
	}

	h.recordRegistration("success")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	_, err := h.accounts.Authenticate(r.Context(), username, password)
	if err != nil {
		switch errCode(err) {
		case "ACCOUNT_NOT_FOUND":
			// Unknown users are distinguishable from bad passwords;
			// this asymmetry is part of the external contract.
			h.recordLogin("not_found")
			http.Error(w, "User not found", http.StatusNotFound)
		case "ACCOUNT_INVALID_CREDENTIALS":
			h.recordLogin("failed")
			writeText(w, http.StatusOK, "Login failed")
		default:
			h.recordLogin("error")
			h.internalError(w, "login", err)
		}
		return
	}

	h.recordLogin("success")
	writeText(w, http.StatusOK, "Login successful")
}

type forgotPasswordForm struct {
	Email string `validate:"required,email"`
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := forgotPasswordForm{Email: r.PostFormValue("email")}
	if err := h.validator.Struct(form); err != nil {
		h.recordReset("initiate", "invalid")
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.resets.InitiateReset(r.Context(), form.Email); err != nil {
		switch errCode(err) {
		case "ACCOUNT_NOT_FOUND":
			h.recordReset("initiate", "not_found")
			http.Error(w, "User not found", http.StatusNotFound)
		default:
			h.recordReset("initiate", "error")
			h.internalError(w, "forgot-password", err)
		}
		return
	}

	h.recordReset("initiate", "success")
	writeText(w, http.StatusOK, "Password reset link sent to your email")
}

// showChangePassword serves the minimal form behind the reset link.
// The account ID from the link is carried through as a hidden field.
func (h *Handler) showChangePassword(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if _, err := ulid.Parse(accountID); err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // best effort page write, client may disconnect
	fmt.Fprintf(w, `<form method="POST" action="/change-password">`+
		`<input type="hidden" name="userId" value="%s">`+
		`<input type="password" name="newPassword" placeholder="New password">`+
		`<button type="submit">Change password</button>`+
		`</form>`, accountID)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	accountID, err := ulid.Parse(r.PostFormValue("userId"))
	if err != nil {
		h.recordReset("complete", "invalid")
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.resets.CompletePasswordChange(r.Context(), accountID, r.PostFormValue("newPassword")); err != nil {
		switch errCode(err) {
		case "ACCOUNT_NOT_FOUND":
			h.recordReset("complete", "not_found")
			http.Error(w, "User not found", http.StatusNotFound)
		case "ACCOUNT_EMPTY_PASSWORD":
			h.recordReset("complete", "invalid")
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.recordReset("complete", "error")
			h.internalError(w, "change-password", err)
		}
		return
	}

	h.recordReset("complete", "success")
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// internalError logs the error with its code and context, and responds
// with an undifferentiated 500. Store outages and programming errors
// are deliberately indistinguishable to callers.
func (h *Handler) internalError(w http.ResponseWriter, operation string, err error) {
	errutil.LogError(h.logger, operation+" failed", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) recordRegistration(status string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}

func (h *Handler) recordLogin(status string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}

func (h *Handler) recordReset(phase, status string) {
	if h.metrics != nil {
		h.metrics.PasswordResetsTotal.WithLabelValues(phase, status).Inc()
	}
}

// errCode extracts the oops error code, or empty string for plain errors.
func errCode(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := oopsErr.Code().(string); ok {
			return code
		}
	}
	return ""
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	//nolint:errcheck // response write error is acceptable, client may disconnect
	w.Write([]byte(body))
}
