package apihandlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgtasks/internal/apihandlers"
	"imgtasks/internal/cache"
	"imgtasks/internal/mocks"
	"imgtasks/internal/models"
	"imgtasks/internal/services"
)

type fixture struct {
	svc    *services.TaskService
	router *gin.Engine
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)

	svc := services.NewTaskService(services.TaskServiceDeps{
		Tasks:     mocks.NewTaskStore(),
		Jobs:      &mocks.JobClient{},
		Cache:     cache.New(mocks.NewCacheBackend()),
		Publisher: &mocks.Publisher{},
		Artifacts: &mocks.ArtifactStore{},
		TTLs:      services.CacheTTLs{Task: time.Minute, List: time.Minute, Idempotency: time.Hour},
	})

	handler := apihandlers.NewAPIHandler(svc)
	router := gin.New()
	tasks := router.Group("/api/v1/tasks")
	tasks.POST("", handler.CreateTaskHandler)
	tasks.GET("", handler.ListTasksHandler)
	tasks.GET("/:id", handler.GetTaskHandler)
	tasks.POST("/:id/retry", handler.RetryTaskHandler)

	return &fixture{svc: svc, router: router}
}

func (f *fixture) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeTask(t *testing.T, body []byte) models.Task {
	t.Helper()
	var envelope struct {
		Data models.Task `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Data
}

func decodeError(t *testing.T, body []byte) (code, message string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Error.Code, envelope.Error.Message
}

func TestCreateTaskHandler(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/v1/tasks", `{"sourceLocation":"/in/cat.jpg"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	task := decodeTask(t, w.Body.Bytes())
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.GreaterOrEqual(t, task.Price, models.PriceMin)
	assert.LessOrEqual(t, task.Price, models.PriceMax)
}

func TestCreateTaskHandler_IdempotencyKeyReplaysOriginal(t *testing.T) {
	f := newFixture()
	headers := map[string]string{"Idempotency-Key": "req-42"}

	first := f.do(t, http.MethodPost, "/api/v1/tasks", `{"sourceLocation":"/in/cat.jpg"}`, headers)
	require.Equal(t, http.StatusCreated, first.Code)

	second := f.do(t, http.MethodPost, "/api/v1/tasks", `{"sourceLocation":"/in/cat.jpg"}`, headers)
	require.Equal(t, http.StatusOK, second.Code, "replay returns the original task, not a new one")

	assert.Equal(t, decodeTask(t, first.Body.Bytes()).ID, decodeTask(t, second.Body.Bytes()).ID)
}

func TestCreateTaskHandler_MissingSourceLocation(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/api/v1/tasks", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	code, _ := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "bad_request", code)
}

func TestGetTaskHandler(t *testing.T) {
	f := newFixture()
	created, _, err := f.svc.CreateTask(context.Background(), services.CreateTaskParams{SourceLocation: "/in/a.jpg"})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decodeTask(t, w.Body.Bytes()).ID)
}

func TestGetTaskHandler_NotFound(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/v1/tasks/no-such-task", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	code, message := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "not_found", code)
	assert.Contains(t, message, "no-such-task")
}

func TestListTasksHandler(t *testing.T) {
	f := newFixture()
	for i := 0; i < 3; i++ {
		_, _, err := f.svc.CreateTask(context.Background(), services.CreateTaskParams{
			SourceLocation: fmt.Sprintf("/in/%d.jpg", i),
		})
		require.NoError(t, err)
	}

	w := f.do(t, http.MethodGet, "/api/v1/tasks?page=1&limit=2", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.TaskPage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Len(t, envelope.Data.Tasks, 2)
	assert.Equal(t, 3, envelope.Data.Total)
	assert.Equal(t, 2, envelope.Data.TotalPages)
}

func TestListTasksHandler_StatusFilter(t *testing.T) {
	f := newFixture()
	_, _, err := f.svc.CreateTask(context.Background(), services.CreateTaskParams{SourceLocation: "/in/a.jpg"})
	require.NoError(t, err)

	w := f.do(t, http.MethodGet, "/api/v1/tasks?status=completed", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.TaskPage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Empty(t, envelope.Data.Tasks)
	assert.Equal(t, 0, envelope.Data.Total)
}

func TestListTasksHandler_UnknownStatus(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/api/v1/tasks?status=bogus", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	code, _ := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "bad_request", code)
}

func TestRetryTaskHandler(t *testing.T) {
	f := newFixture()
	created, _, err := f.svc.CreateTask(context.Background(), services.CreateTaskParams{SourceLocation: "/in/a.jpg"})
	require.NoError(t, err)

	reason := "decode failed"
	_, _, err = f.svc.BeginProcessing(context.Background(), created.ID, "w1")
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyStatusUpdate(context.Background(), created.ID, models.StatusFailed, services.StatusUpdateParams{
		FailureReason: &reason,
	}))

	w := f.do(t, http.MethodPost, "/api/v1/tasks/"+created.ID+"/retry", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusPending, decodeTask(t, w.Body.Bytes()).Status)
}

func TestRetryTaskHandler_NotFailed(t *testing.T) {
	f := newFixture()
	created, _, err := f.svc.CreateTask(context.Background(), services.CreateTaskParams{SourceLocation: "/in/a.jpg"})
	require.NoError(t, err)

	w := f.do(t, http.MethodPost, "/api/v1/tasks/"+created.ID+"/retry", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	code, _ := decodeError(t, w.Body.Bytes())
	assert.Equal(t, "invalid_state", code)
}
