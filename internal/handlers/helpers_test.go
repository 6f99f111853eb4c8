package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/team-taskboard/internal/broadcast"
	"github.com/yukikurage/team-taskboard/internal/constants"
	"github.com/yukikurage/team-taskboard/internal/middleware"
	"github.com/yukikurage/team-taskboard/internal/models"
	"github.com/yukikurage/team-taskboard/internal/repository"
	"github.com/yukikurage/team-taskboard/internal/services"
	"github.com/yukikurage/team-taskboard/internal/utils"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	db          *gorm.DB
	hub         *broadcast.Hub
	authService *services.AuthService
	taskService *services.TaskService
	router      *gin.Engine
}

func setupTestEnv(t *testing.T, admins ...string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Task{}))

	hub := broadcast.NewHub(constants.SubscriberBuffer)
	t.Cleanup(hub.Close)

	userRepo := repository.NewUserRepository(db)
	authService := services.NewAuthService(userRepo, utils.NewTokenManager("test-secret", time.Hour), admins)
	taskService := services.NewTaskService(repository.NewTaskRepository(db), userRepo, hub, nil)

	env := &testEnv{
		db:          db,
		hub:         hub,
		authService: authService,
		taskService: taskService,
	}
	env.router = env.mount()
	return env
}

func (env *testEnv) mount() *gin.Engine {
	r := gin.New()
	authHandler := NewAuthHandler(env.authService, false)
	taskHandler := NewTaskHandler(env.taskService)
	requireAuth := middleware.RequireAuth(env.authService)

	r.POST("/api/auth/signup", authHandler.Signup)
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/auth/logout", authHandler.Logout)
	r.GET("/api/auth/me", requireAuth, authHandler.GetCurrentUser)

	tasks := r.Group("/api/tasks", requireAuth)
	tasks.GET("", taskHandler.ListTasks)
	tasks.POST("", taskHandler.CreateTask)
	tasks.POST("/suggest", taskHandler.SuggestTasks)
	tasks.PATCH("/:id", taskHandler.UpdateTask)
	tasks.DELETE("/:id", taskHandler.DeleteTask)

	r.GET("/api/events", requireAuth, NewEventsHandler(env.hub).Stream)
	return r
}

// do sends a JSON request, attaching the session cookie when token is set
func (env *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: token})
	}

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

// signupAndLogin registers a user and returns its id and session token
func (env *testEnv) signupAndLogin(t *testing.T, username string) (string, string) {
	t.Helper()

	w := env.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "supersecret",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"emailOrUsername": username,
		"password":        "supersecret",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		UserID string `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	cookie := findCookie(w.Result().Cookies(), constants.SessionCookieName)
	require.NotNil(t, cookie)
	return resp.UserID, cookie.Value
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}
