package menu

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/KretovDmitry/bistro/internal/interface/api/rest/response"
	"github.com/KretovDmitry/bistro/internal/models/errs"
	"github.com/KretovDmitry/bistro/internal/models/menu"
	"github.com/KretovDmitry/bistro/internal/models/user"
	"github.com/KretovDmitry/bistro/pkg/logger"
	"github.com/shopspring/decimal"
)

// ItemResponse is a dish as sent to clients.
type ItemResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	ImageURL    string `json:"imageUrl,omitempty"`
	Price       string `json:"price"`
	ID          int    `json:"id"`
	Available   bool   `json:"available"`
	Featured    bool   `json:"featured"`
}

func newItemResponse(item *menu.Item) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Category:    item.Category,
		ImageURL:    item.ImageURL,
		Price:       item.Price.StringFixed(2),
		Available:   item.Available,
		Featured:    item.Featured,
	}
}

type Service struct {
	repo             Repository
	logger           logger.Logger
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func NewService(repo Repository, logger logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("nil dependency: repository")
	}
	if logger == nil {
		return nil, errors.New("nil dependency: logger")
	}
	return &Service{repo: repo, logger: logger, ErrorHandlerFunc: response.ErrorHandler(logger)}, nil
}

var _ ServerInterface = (*Service)(nil)

func (s *Service) writeItems(w http.ResponseWriter, r *http.Request, items []*menu.Item, err error) {
	if err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, newItemResponse(item))
	}

	if err = response.JSON(w, http.StatusOK, out); err != nil {
		s.logger.With(r.Context()).Errorf("write menu response: %s", err)
	}
}

// Available dishes (GET /api/menu).
func (s *Service) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.repo.ListAvailable(r.Context())
	s.writeItems(w, r, items, err)
}

// Categories (GET /api/menu/categories).
func (s *Service) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.repo.Categories(r.Context())
	if err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	if err = response.JSON(w, http.StatusOK, categories); err != nil {
		s.logger.With(r.Context()).Errorf("write categories response: %s", err)
	}
}

// Featured dishes (GET /api/menu/featured).
func (s *Service) ListFeatured(w http.ResponseWriter, r *http.Request) {
	items, err := s.repo.ListFeatured(r.Context())
	s.writeItems(w, r, items, err)
}

// Dishes of a category (GET /api/menu/category/{category}).
func (s *Service) ListByCategory(w http.ResponseWriter, r *http.Request, category string) {
	items, err := s.repo.ListByCategory(r.Context(), category)
	s.writeItems(w, r, items, err)
}

// Search by name or description (GET /api/menu/search).
func (s *Service) Search(w http.ResponseWriter, r *http.Request, params SearchParams) {
	items, err := s.repo.Search(r.Context(), params.Query)
	s.writeItems(w, r, items, err)
}

// Single dish (GET /api/menu/{id}).
func (s *Service) GetItem(w http.ResponseWriter, r *http.Request, id int) {
	item, err := s.repo.GetItem(r.Context(), id)
	if err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	if err = response.JSON(w, http.StatusOK, newItemResponse(item)); err != nil {
		s.logger.With(r.Context()).Errorf("write menu item response: %s", err)
	}
}

// Add a dish (POST /api/menu).
func (s *Service) CreateItem(w http.ResponseWriter, r *http.Request, params CreateItemParams) {
	admin, ok := s.admin(w, r)
	if !ok {
		return
	}

	price, err := checkPrice(params.Price.Decimal)
	if err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	item := &menu.Item{
		Name:        strings.TrimSpace(params.Name),
		Description: params.Description,
		Category:    strings.TrimSpace(params.Category),
		ImageURL:    params.ImageURL,
		Price:       price,
		Available:   params.Available == nil || *params.Available,
		Featured:    params.Featured,
	}

	if err = s.repo.CreateItem(r.Context(), item); err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("create menu item: %w", err))
		return
	}

	s.logger.With(r.Context(), "menu_item_id", item.ID, "user_id", admin.ID).Infof("menu item %q added", item.Name)

	if err = response.JSON(w, http.StatusCreated, newItemResponse(item)); err != nil {
		s.logger.With(r.Context()).Errorf("write menu item response: %s", err)
	}
}

// Change a dish (PUT /api/menu/{id}).
func (s *Service) UpdateItem(w http.ResponseWriter, r *http.Request, id int, params UpdateItemParams) {
	admin, ok := s.admin(w, r)
	if !ok {
		return
	}

	item, err := s.repo.GetItem(r.Context(), id)
	if err != nil {
		s.ErrorHandlerFunc(w, r, err)
		return
	}

	if params.Price != nil {
		if item.Price, err = checkPrice(params.Price.Decimal); err != nil {
			s.ErrorHandlerFunc(w, r, err)
			return
		}
	}
	if params.Name != nil {
		item.Name = strings.TrimSpace(*params.Name)
	}
	if params.Description != nil {
		item.Description = *params.Description
	}
	if params.Category != nil {
		item.Category = strings.TrimSpace(*params.Category)
	}
	if params.ImageURL != nil {
		item.ImageURL = *params.ImageURL
	}
	if params.Available != nil {
		item.Available = *params.Available
	}
	if params.Featured != nil {
		item.Featured = *params.Featured
	}

	if item.Name == "" {
		s.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "name", Message: "is required"})
		return
	}
	if item.Category == "" {
		s.ErrorHandlerFunc(w, r, &errs.ValidationError{Field: "category", Message: "is required"})
		return
	}

	if err = s.repo.UpdateItem(r.Context(), item); err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("update menu item: %w", err))
		return
	}

	s.logger.With(r.Context(), "menu_item_id", id, "user_id", admin.ID).Info("menu item updated")

	if err = response.JSON(w, http.StatusOK, newItemResponse(item)); err != nil {
		s.logger.With(r.Context()).Errorf("write menu item response: %s", err)
	}
}

// Remove a dish (DELETE /api/menu/{id}).
func (s *Service) DeleteItem(w http.ResponseWriter, r *http.Request, id int) {
	admin, ok := s.admin(w, r)
	if !ok {
		return
	}

	if err := s.repo.DeleteItem(r.Context(), id); err != nil {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("delete menu item: %w", err))
		return
	}

	s.logger.With(r.Context(), "menu_item_id", id, "user_id", admin.ID).Info("menu item deleted")

	w.WriteHeader(http.StatusNoContent)
}

// admin returns the caller if it may change the menu, otherwise writes the error.
func (s *Service) admin(w http.ResponseWriter, r *http.Request) (*user.User, bool) {
	u, ok := user.FromContext(r.Context())
	if !ok || u == nil {
		s.ErrorHandlerFunc(w, r, errs.ErrUnauthorized)
		return nil, false
	}
	if !u.Role.IsAdmin() {
		s.ErrorHandlerFunc(w, r, fmt.Errorf("change menu: %w", errs.ErrAccessDenied))
		return nil, false
	}
	return u, true
}

func checkPrice(p decimal.Decimal) (decimal.Decimal, error) {
	if p.IsNegative() {
		return p, &errs.ValidationError{Field: "price", Message: "must not be negative"}
	}
	if !p.Equal(p.Round(2)) {
		return p, &errs.ValidationError{Field: "price", Message: "must have at most 2 decimal places"}
	}
	return p, nil
}
