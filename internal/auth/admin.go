package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/response"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/user"
	"golang.org/x/crypto/bcrypt"
)

var _ AdminServerInterface = (*Service)(nil)

// AdminOnly admits callers with the ADMIN role. It runs after Middleware.
func (s *Service) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := user.FromContext(r.Context())
		if !ok || u == nil {
			s.ErrorHandlerFunc(w, r, errs.ErrUnauthorized)
			return
		}
		if !u.Role.IsAdmin() {
			s.ErrorHandlerFunc(w, r, fmt.Errorf("%w: admin role required", errs.ErrAccessDenied))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Every user (GET /api/admin/users).
func (s *Service) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.repo.ListUsers(r.Context())
	if err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("list users: %w", err))
		return
	}

	if err = response.JSON(w, http.StatusOK, users); err != nil {
		s.logger.With(r.Context()).Errorf("write users response: %s", err)
	}
}

// Single user (GET /api/admin/users/{id}).
func (s *Service) GetUser(w http.ResponseWriter, r *http.Request, id int) {
	u, err := s.repo.GetUserByID(r.Context(), id)
	if err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("get user %d: %w", id, err))
		return
	}

	if err = response.JSON(w, http.StatusOK, u); err != nil {
		s.logger.With(r.Context()).Errorf("write user response: %s", err)
	}
}

// Add a user with any role (POST /api/admin/users).
func (s *Service) CreateUser(w http.ResponseWriter, r *http.Request, params CreateUserParams) {
	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.config.PasswordHashCost)
	if err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	role := user.Role(params.Role)
	if role == "" {
		role = user.CUSTOMER
	}

	u := &user.User{
		Login:     params.Login,
		Password:  string(hash),
		Email:     strings.TrimSpace(params.Email),
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Phone:     params.Phone,
		Address:   params.Address,
		Role:      role,
	}

	u.ID, err = s.repo.CreateUser(r.Context(), u)
	if err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	s.logger.With(r.Context(), "user_id", u.ID, "role", u.Role).Info("user created by admin")

	if err = response.JSON(w, http.StatusCreated, u); err != nil {
		s.logger.With(r.Context()).Errorf("write user response: %s", err)
	}
}

// Change profile or role (PUT /api/admin/users/{id}).
func (s *Service) UpdateUser(w http.ResponseWriter, r *http.Request, id int, params UpdateUserParams) {
	caller, _ := user.FromContext(r.Context())

	u, err := s.repo.GetUserByID(r.Context(), id)
	if err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("get user %d: %w", id, err))
		return
	}

	applyProfile(u, params.profile())
	if params.Role != nil {
		role := user.Role(*params.Role)
		// Keeps at least one admin around.
		if caller != nil && caller.ID == id && role != u.Role {
			s.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "role", Message: "cannot change your own role"})
			return
		}
		u.Role = role
	}

	if err = s.repo.UpdateUser(r.Context(), u); err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("update user %d: %w", id, err))
		return
	}

	s.logger.With(r.Context(), "user_id", id).Info("user updated by admin")

	if err = response.JSON(w, http.StatusOK, u); err != nil {
		s.logger.With(r.Context()).Errorf("write user response: %s", err)
	}
}

// Reset a password (PUT /api/admin/users/{id}/password).
func (s *Service) SetPassword(w http.ResponseWriter, r *http.Request, id int, params SetPasswordParams) {
	if err := s.setPassword(r, id, params.NewPassword); err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	s.logger.With(r.Context(), "user_id", id).Info("password reset by admin")

	w.WriteHeader(http.StatusNoContent)
}

// Remove a user (DELETE /api/admin/users/{id}).
func (s *Service) DeleteUser(w http.ResponseWriter, r *http.Request, id int) {
	if caller, ok := user.FromContext(r.Context()); ok && caller != nil && caller.ID == id {
		s.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "id", Message: "cannot delete your own account"})
		return
	}

	if err := s.repo.DeleteUser(r.Context(), id); err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("delete user %d: %w", id, err))
		return
	}

	s.logger.With(r.Context(), "user_id", id).Info("user deleted by admin")

	w.WriteHeader(http.StatusNoContent)
}
