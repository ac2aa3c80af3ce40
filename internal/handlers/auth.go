package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"till/internal/auth"
	"till/internal/middleware"
	"till/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates a staff account. The first staff member ever registered
// is promoted to manager so a fresh install can bootstrap itself.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validator.ValidateUsername(req.Username); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.staff.GetByUsername(r.Context(), req.Username); err == nil {
		respondError(w, http.StatusConflict, "username already taken")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	staffID := uuid.NewString()
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.staff.Create(r.Context(), tx, staffID, req.Username, req.Email, hash); err != nil {
			return err
		}
		hasManager, err := h.managers.HasAnyManager(r.Context())
		if err != nil {
			return err
		}
		if !hasManager {
			if err := h.managers.Promote(r.Context(), tx, staffID, nil); err != nil {
				return err
			}
		}
		return h.audit.Log(r.Context(), tx, staffID, "staff_register", "staff", staffID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not create staff")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{
		"id":       staffID,
		"username": req.Username,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	staff, err := h.staff.GetByUsername(r.Context(), req.Username)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !auth.CheckPassword(staff.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, staff.ID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	staffID, ok := middleware.StaffIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	staff, err := h.staff.GetByID(r.Context(), staffID)
	if err != nil {
		respondError(w, http.StatusNotFound, "staff not found")
		return
	}
	isManager, err := h.managers.IsManager(r.Context(), staffID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"staff":      staff,
		"is_manager": isManager,
	})
}
