package auth

import "net/http"

type mockAuthService struct{}

func (m *mockAuthService) Register(w http.ResponseWriter, r *http.Request, params RegisterParams) {}

func (m *mockAuthService) Login(w http.ResponseWriter, r *http.Request, params LoginParams) {}

func (m *mockAuthService) Logout(w http.ResponseWriter, r *http.Request) {}

func (m *mockAuthService) Me(w http.ResponseWriter, r *http.Request) {}

func (m *mockAuthService) UpdateProfile(w http.ResponseWriter, r *http.Request, params ProfileParams) {}

func (m *mockAuthService) ChangePassword(w http.ResponseWriter, r *http.Request, params ChangePasswordParams) {
}
