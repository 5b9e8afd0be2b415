package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-assignment-api/internal/config"
	"github.com/yukikurage/task-assignment-api/internal/models"
	"github.com/yukikurage/task-assignment-api/internal/notification"
	"github.com/yukikurage/task-assignment-api/internal/repository"
	"github.com/yukikurage/task-assignment-api/internal/server"
	"github.com/yukikurage/task-assignment-api/internal/services"
	"github.com/yukikurage/task-assignment-api/internal/testutil"
	"gorm.io/gorm"
)

type apiEnv struct {
	t      *testing.T
	db     *gorm.DB
	router *gin.Engine
	users  *services.UserService
	tasks  *services.TaskService
	today  models.Date

	admin *models.User
	alice *models.User
	bob   *models.User
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.NewDB(t)
	log := testutil.Logger(t)
	start := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	users := services.NewUserService(userRepo, taskRepo, log)
	tasks := services.NewTaskService(taskRepo, userRepo, notification.Noop{}, log,
		services.WithClock(testutil.Clock(start)))

	store, err := server.NewSessionStore(config.SessionConfig{Store: "cookie", Secret: "secret", MaxAge: 3600}, false)
	require.NoError(t, err)

	router := server.NewRouter(server.Deps{
		DB:                 db,
		Log:                log,
		SessionStore:       store,
		Users:              users,
		Tasks:              tasks,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		QueryTimeout:       5 * time.Second,
	})

	return &apiEnv{
		t:      t,
		db:     db,
		router: router,
		users:  users,
		tasks:  tasks,
		today:  models.DateOf(start),
		admin:  testutil.CreateUser(t, db, "admin", models.RoleAdmin, "password"),
		alice:  testutil.CreateUser(t, db, "alice", models.RoleUser, "secret1"),
		bob:    testutil.CreateUser(t, db, "bob", models.RoleUser, "secret2"),
	}
}

// do sends a request through the router. body may be nil, a string of raw
// JSON, or any value to marshal.
func (e *apiEnv) do(method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *apiEnv) login(email, password string) []*http.Cookie {
	e.t.Helper()

	w := e.do(http.MethodPost, "/api/auth", map[string]string{
		"action":   "login",
		"email":    email,
		"password": password,
	}, nil)
	require.Equal(e.t, http.StatusOK, w.Code, w.Body.String())

	cookies := w.Result().Cookies()
	require.NotEmpty(e.t, cookies, "expected session cookie to be set")
	return cookies
}

func (e *apiEnv) asAdmin() []*http.Cookie { return e.login("admin@example.com", "password") }
func (e *apiEnv) asAlice() []*http.Cookie { return e.login("alice@example.com", "secret1") }
func (e *apiEnv) asBob() []*http.Cookie   { return e.login("bob@example.com", "secret2") }

func (e *apiEnv) createTask(title string, assignee *models.User, deadline *models.Date) *models.Task {
	e.t.Helper()

	task, err := e.tasks.Create(context.Background(), services.CreateTaskInput{
		Title:      title,
		AssignedTo: assignee.ID,
		AssignedBy: e.admin.ID,
		Deadline:   deadline,
	})
	require.NoError(e.t, err)
	return task
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}

func userPath(u *models.User) string { return fmt.Sprintf("/api/users/%d", u.ID) }

func taskPath(id uint64) string { return fmt.Sprintf("/api/tasks/%d", id) }

func datePtr(d models.Date) *models.Date { return &d }
