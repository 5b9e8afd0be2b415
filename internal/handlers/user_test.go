package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/task-assignment-api/internal/dto"
)

type usersResponse struct {
	Message string        `json:"message"`
	User    *dto.UserDTO  `json:"user"`
	Users   []dto.UserDTO `json:"users"`
}

type UserHandlerTestSuite struct {
	suite.Suite
	env *apiEnv
}

func (s *UserHandlerTestSuite) SetupTest() {
	s.env = newAPIEnv(s.T())
}

func (s *UserHandlerTestSuite) TestRequiresSession() {
	w := s.env.do(http.MethodGet, "/api/users/me", nil, nil)
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("Unauthorized", errorOf(s.T(), w))
}

func (s *UserHandlerTestSuite) TestListUsers() {
	admin := s.env.asAdmin()

	w := s.env.do(http.MethodGet, "/api/users", nil, admin)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(decode[usersResponse](s.T(), w).Users, 3)

	w = s.env.do(http.MethodGet, "/api/users?role=admin", nil, admin)
	s.Require().Equal(http.StatusOK, w.Code)
	users := decode[usersResponse](s.T(), w).Users
	s.Require().Len(users, 1)
	s.Equal("admin", users[0].Username)

	w = s.env.do(http.MethodGet, "/api/users?role=owner", nil, admin)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Invalid role", errorOf(s.T(), w))
}

func (s *UserHandlerTestSuite) TestListUsers_AdminOnly() {
	w := s.env.do(http.MethodGet, "/api/users", nil, s.env.asAlice())
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("Admin access required", errorOf(s.T(), w))
}

func (s *UserHandlerTestSuite) TestCreateUser() {
	admin := s.env.asAdmin()

	w := s.env.do(http.MethodPost, "/api/users", map[string]string{
		"username": "ops",
		"email":    "ops@example.com",
		"password": "secret9",
		"role":     "admin",
	}, admin)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	resp := decode[usersResponse](s.T(), w)
	s.Equal("User created successfully", resp.Message)
	s.Equal("admin", string(resp.User.Role))

	w = s.env.do(http.MethodPost, "/api/users", map[string]string{
		"username": "ops2",
		"email":    "ops@example.com",
		"password": "secret9",
	}, admin)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("User already exists", errorOf(s.T(), w))

	w = s.env.do(http.MethodPost, "/api/users", map[string]string{"username": "ops3"}, admin)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Username, email, and password required", errorOf(s.T(), w))
}

func (s *UserHandlerTestSuite) TestGetUser_SelfOrAdmin() {
	alice := s.env.asAlice()

	w := s.env.do(http.MethodGet, "/api/users/me", nil, alice)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("alice", decode[usersResponse](s.T(), w).User.Username)

	w = s.env.do(http.MethodGet, userPath(s.env.alice), nil, alice)
	s.Equal(http.StatusOK, w.Code)

	w = s.env.do(http.MethodGet, userPath(s.env.bob), nil, alice)
	s.Equal(http.StatusForbidden, w.Code)

	admin := s.env.asAdmin()
	w = s.env.do(http.MethodGet, userPath(s.env.bob), nil, admin)
	s.Equal(http.StatusOK, w.Code)

	w = s.env.do(http.MethodGet, "/api/users/9999", nil, admin)
	s.Equal(http.StatusNotFound, w.Code)
	s.Equal("User not found", errorOf(s.T(), w))

	w = s.env.do(http.MethodGet, "/api/users/abc", nil, admin)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Invalid user ID", errorOf(s.T(), w))
}

func (s *UserHandlerTestSuite) TestUpdateUser() {
	alice := s.env.asAlice()

	w := s.env.do(http.MethodPut, userPath(s.env.alice), map[string]string{"email": "alice@corp.example.com"}, alice)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	resp := decode[usersResponse](s.T(), w)
	s.Equal("User updated successfully", resp.Message)
	s.Equal("alice@corp.example.com", resp.User.Email)

	w = s.env.do(http.MethodPut, userPath(s.env.alice), map[string]string{"role": "admin"}, alice)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("Only administrators can change roles", errorOf(s.T(), w))

	w = s.env.do(http.MethodPut, userPath(s.env.alice), `{"nickname":"al"}`, alice)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal(`Unknown field "nickname"`, errorOf(s.T(), w))

	w = s.env.do(http.MethodPut, userPath(s.env.alice), `{}`, alice)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("No valid fields to update", errorOf(s.T(), w))

	w = s.env.do(http.MethodPut, userPath(s.env.alice), map[string]string{"username": "bob"}, alice)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("User already exists", errorOf(s.T(), w))

	w = s.env.do(http.MethodPut, userPath(s.env.bob), map[string]string{"username": "robert"}, alice)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *UserHandlerTestSuite) TestUpdateUser_AdminChangesRole() {
	w := s.env.do(http.MethodPut, userPath(s.env.bob), map[string]string{"role": "admin"}, s.env.asAdmin())
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("admin", string(decode[usersResponse](s.T(), w).User.Role))
}

func (s *UserHandlerTestSuite) TestUpdateUser_CannotPromoteAssignee() {
	admin := s.env.asAdmin()
	s.env.createTask("Report", s.env.alice, nil)

	w := s.env.do(http.MethodPut, userPath(s.env.alice), map[string]string{"role": "admin"}, admin)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Cannot make a user with assigned tasks an administrator", errorOf(s.T(), w))

	w = s.env.do(http.MethodGet, userPath(s.env.alice), nil, admin)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("user", string(decode[usersResponse](s.T(), w).User.Role))
}

func (s *UserHandlerTestSuite) TestRegister_PasswordOverLimitIsBadRequest() {
	w := s.env.do(http.MethodPost, "/api/auth", map[string]string{
		"action":   "register",
		"username": "carol",
		"email":    "carol@example.com",
		"password": strings.Repeat("a", 80),
	}, nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Password must be at most 72 bytes", errorOf(s.T(), w))
}

func (s *UserHandlerTestSuite) TestAdminPassword_OnlyThroughReset() {
	admin := s.env.asAdmin()

	w := s.env.do(http.MethodPut, userPath(s.env.admin), map[string]string{"password": "rotated1"}, admin)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("Cannot change password for administrator accounts", errorOf(s.T(), w))

	w = s.env.do(http.MethodPut, userPath(s.env.admin)+"/password", map[string]string{"password": "rotated1"}, admin)
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("Password updated successfully", decode[usersResponse](s.T(), w).Message)

	s.env.login("admin@example.com", "rotated1")

	w = s.env.do(http.MethodPut, userPath(s.env.admin)+"/password", map[string]string{"password": "123"}, admin)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *UserHandlerTestSuite) TestDeleteUser() {
	admin := s.env.asAdmin()
	s.env.createTask("Report", s.env.alice, nil)

	w := s.env.do(http.MethodDelete, userPath(s.env.alice), nil, admin)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("Cannot delete a user with assigned or created tasks", errorOf(s.T(), w))

	w = s.env.do(http.MethodDelete, userPath(s.env.bob), nil, admin)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("User deleted successfully", decode[usersResponse](s.T(), w).Message)

	w = s.env.do(http.MethodDelete, userPath(s.env.bob), nil, admin)
	s.Equal(http.StatusNotFound, w.Code)

	w = s.env.do(http.MethodDelete, userPath(s.env.alice), nil, s.env.asAlice())
	s.Equal(http.StatusForbidden, w.Code)
}

func TestUserHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(UserHandlerTestSuite))
}
