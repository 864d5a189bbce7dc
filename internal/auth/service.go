package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KretovDmitry/bistro/internal/config"
	"github.com/KretovDmitry/bistro/internal/interface/api/rest/response"
	"github.com/KretovDmitry/bistro/internal/jwt"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/user"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

const cookieName = "Authorization"

type Service struct {
	repo             Repository
	logger           logger.Logger
	config           *config.Config
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func NewService(repo Repository, logger logger.Logger, config *config.Config) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}
	if config == nil {
		return nil, errors.New("nil dependency: config")
	}
	return &Service{
		repo:             repo,
		logger:           logger,
		config:           config,
		ErrorHandlerFunc: response.ErrorHandler(logger),
	}, nil
}

var _ ServerInterface = (*Service)(nil)

// Registration (POST /api/user/register).
func (s *Service) Register(w http.ResponseWriter, r *http.Request, params RegisterParams) {
	// Create password hash.
	hashPassword, err := bcrypt.GenerateFromPassword([]byte(params.Password), s.config.PasswordHashCost)
	if err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("hash password: %w", err))
		return
	}

	u := &user.User{
		Login:     params.Login,
		Password:  string(hashPassword),
		Email:     strings.TrimSpace(params.Email),
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Phone:     params.Phone,
		Address:   params.Address,
		Role:      user.CUSTOMER,
	}

	// Create user.
	u.ID, err = s.repo.CreateUser(r.Context(), u)
	if err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("create user: %w", err))
		return
	}

	if err = s.setAuthCookie(w, u.ID); err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	s.logger.With(r.Context()).Infof("user %d registered", u.ID)

	if err = response.JSON(w, http.StatusOK, u); err != nil {
		s.logger.With(r.Context()).Errorf("write register response: %s", err)
	}
}

// Authentication (POST /api/user/login).
func (s *Service) Login(w http.ResponseWriter, r *http.Request, params LoginParams) {
	// Retrieve user from the database with provided login.
	u, err := s.repo.GetUserByLogin(r.Context(), params.Login)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.ErrorHandlerFunc(w, r, fmt.Errorf("%w: user with login %q not found",
				errs.ErrInvalidCredentials, params.Login))
			return
		}
		s.ErrorHandlerFunc(w, r, fmt.Errorf("get user %q: %w", params.Login, err))
		return
	}

	// Compare stored and provided passwords.
	err = bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(params.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.ErrorHandlerFunc(w, r, fmt.Errorf("%w: password", errs.ErrInvalidCredentials))
			return
		}
		s.ErrorHandlerFunc(w, r, fmt.Errorf("compare passwords: %w", err))
		return
	}

	if err = s.setAuthCookie(w, u.ID); err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	if err = response.JSON(w, http.StatusOK, u); err != nil {
		s.logger.With(r.Context()).Errorf("write login response: %s", err)
	}
}

// Sign out (POST /api/user/logout).
func (s *Service) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	w.WriteHeader(http.StatusNoContent)
}

// Current user profile (GET /api/user/me).
func (s *Service) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		s.ErrorHandlerFunc(w, r, errs.ErrUnauthorized)
		return
	}

	if err := response.JSON(w, http.StatusOK, u); err != nil {
		s.logger.With(r.Context()).Errorf("write profile response: %s", err)
	}
}

// Profile change (PUT /api/user/profile).
func (s *Service) UpdateProfile(w http.ResponseWriter, r *http.Request, params ProfileParams) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		s.ErrorHandlerFunc(w, r, errs.ErrUnauthorized)
		return
	}

	updated := *u
	applyProfile(&updated, params)

	if err := s.repo.UpdateUser(r.Context(), &updated); err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("update profile: %w", err))
		return
	}

	s.logger.With(r.Context(), "user_id", u.ID).Info("profile updated")

	if err := response.JSON(w, http.StatusOK, &updated); err != nil {
		s.logger.With(r.Context()).Errorf("write profile response: %s", err)
	}
}

// Password change (POST /api/user/password/change).
func (s *Service) ChangePassword(w http.ResponseWriter, r *http.Request, params ChangePasswordParams) {
	u, ok := user.FromContext(r.Context())
	if !ok {
		s.ErrorHandlerFunc(w, r, errs.ErrUnauthorized)
		return
	}

	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(params.OldPassword))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "oldPassword", Message: "does not match"})
			return
		}
		s.ErrorHandlerFunc(w, r, fmt.Errorf("compare passwords: %w", err))
		return
	}

	if err = s.setPassword(r, u.ID, params.NewPassword); err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	s.logger.With(r.Context(), "user_id", u.ID).Info("password changed")

	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) setPassword(r *http.Request, userID int, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.PasswordHashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err = s.repo.UpdatePassword(r.Context(), userID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

func applyProfile(u *user.User, p ProfileParams) {
	if p.Email != nil {
		u.Email = strings.TrimSpace(*p.Email)
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
}

// Set the "Authorization" cookie with the JWT authentication token.
func (s *Service) setAuthCookie(w http.ResponseWriter, userID int) error {
	authToken, err := jwt.BuildString(userID, s.config.JWT.SigningKey, s.config.JWT.Expiration)
	if err != nil {
		return fmt.Errorf("build token: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    authToken,
		Path:     "/",
		Expires:  time.Now().Add(s.config.JWT.Expiration),
		HttpOnly: true,
	})

	return nil
}

// Middleware authenticates the request by the cookie or the Authorization
// header and puts the user into the request context.
func (s *Service) Middleware(next http.Handler) http.Handler {
	f := func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(cookieName)
		if authCookie, err := r.Cookie(cookieName); err == nil {
			token = authCookie.Value
		}
		if token == "" {
			s.ErrorHandlerFunc(w, r, fmt.Errorf("%w: no authorization token", errs.ErrUnauthorized))
			return
		}

		userID, err := jwt.GetUserID(token, s.config.JWT.SigningKey)
		if err != nil {
			s.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrUnauthorized, err))
			return
		}

		u, err := s.repo.GetUserByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				s.ErrorHandlerFunc(w, r, fmt.Errorf("%w: user %d not found", errs.ErrUnauthorized, userID))
				return
			}
			s.ErrorHandlerFunc(w, r, fmt.Errorf("get user %d: %w", userID, err))
			return
		}

		r = r.WithContext(user.NewContext(r.Context(), u))

		next.ServeHTTP(w, r)
	}

	return http.HandlerFunc(f)
}
