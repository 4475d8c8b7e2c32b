package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/alvin999/PostItTodo/database"
	"github.com/alvin999/PostItTodo/handler"
	"github.com/alvin999/PostItTodo/model"
)

// newTestMux 构建接在内存数据库上的完整路由
func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()

	logger := log.New(io.Discard)
	store, err := database.New(":memory:", logger)
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	h := handler.New(store, logger, "Development")
	return SetupRoutes(h, logger, "")
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeTodo(t *testing.T, rec *httptest.ResponseRecorder) model.Todo {
	t.Helper()
	var todo model.Todo
	if err := json.Unmarshal(rec.Body.Bytes(), &todo); err != nil {
		t.Fatalf("decoding todo from %q: %v", rec.Body.String(), err)
	}
	return todo
}

func decodeTodos(t *testing.T, rec *httptest.ResponseRecorder) []model.Todo {
	t.Helper()
	var todos []model.Todo
	if err := json.Unmarshal(rec.Body.Bytes(), &todos); err != nil {
		t.Fatalf("decoding todos from %q: %v", rec.Body.String(), err)
	}
	return todos
}

func TestHealthCheck(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("got status %q, want %q", body["status"], "ok")
	}
	if body["mode"] != "Development" {
		t.Errorf("got mode %q, want %q", body["mode"], "Development")
	}
}

func TestListTodosEmptyReturnsArray(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/todos/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	todos := decodeTodos(t, rec)
	if todos == nil || len(todos) != 0 {
		t.Errorf("got %v, want empty array", rec.Body.String())
	}
}

// TestFullScenario 走一遍完整流程：创建两项、重排、删除、列表
func TestFullScenario(t *testing.T) {
	mux := newTestMux(t)

	// 创建第一项
	rec := doJSON(t, mux, http.MethodPost, "/todos/", `{"title":"buy milk"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got status %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	first := decodeTodo(t, rec)
	if first.ID != 1 || first.Title != "buy milk" || first.Completed || first.Order != 0 {
		t.Errorf("first todo: got %+v", first)
	}

	// 创建第二项，追加在末尾
	rec = doJSON(t, mux, http.MethodPost, "/todos/", `{"title":"walk dog"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: got status %d, want 201", rec.Code)
	}
	second := decodeTodo(t, rec)
	if second.ID != 2 || second.Order != 1 {
		t.Errorf("second todo: got %+v", second)
	}

	// 重排为 [2, 1]
	rec = doJSON(t, mux, http.MethodPost, "/todos/reorder", `{"todo_ids":[2,1]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reorder: got status %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	todos := decodeTodos(t, rec)
	if len(todos) != 2 {
		t.Fatalf("reorder: got %d todos, want 2", len(todos))
	}
	if todos[0].ID != 2 || todos[0].Order != 0 {
		t.Errorf("position 0: got %+v", todos[0])
	}
	if todos[1].ID != 1 || todos[1].Order != 1 {
		t.Errorf("position 1: got %+v", todos[1])
	}

	// 删除第一项，无响应体
	rec = doJSON(t, mux, http.MethodDelete, "/todos/1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: got status %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("delete: got body %q, want empty", rec.Body.String())
	}

	// 只剩第二项
	rec = doJSON(t, mux, http.MethodGet, "/todos/", "")
	todos = decodeTodos(t, rec)
	if len(todos) != 1 || todos[0].ID != 2 {
		t.Errorf("final list: got %v", rec.Body.String())
	}
}

func TestCreateTodoValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty title", `{"title":""}`},
		{"title wrong type", `{"title":123}`},
		{"not json", `not json at all`},
		{"null title", `{"title":null}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(t)
			rec := doJSON(t, mux, http.MethodPost, "/todos/", tt.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Errorf("got status %d, want 422 (%s)", rec.Code, rec.Body.String())
			}

			var errResp handler.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
				t.Fatalf("decoding error body: %v", err)
			}
			if errResp.Message == "" {
				t.Error("error response missing message")
			}
		})
	}
}

func TestUpdateTodoPartialOverHTTP(t *testing.T) {
	mux := newTestMux(t)

	doJSON(t, mux, http.MethodPost, "/todos/", `{"title":"original"}`)

	// 只传 completed
	rec := doJSON(t, mux, http.MethodPut, "/todos/1", `{"completed":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	todo := decodeTodo(t, rec)
	if todo.Title != "original" || !todo.Completed {
		t.Errorf("got %+v, want title unchanged and completed=true", todo)
	}

	// 只传 title
	rec = doJSON(t, mux, http.MethodPut, "/todos/1", `{"title":"renamed"}`)
	todo = decodeTodo(t, rec)
	if todo.Title != "renamed" || !todo.Completed {
		t.Errorf("got %+v, want title=renamed and completed unchanged", todo)
	}
}

func TestUpdateTodoErrors(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPut, "/todos/99", `{"title":"nope"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: got status %d, want 404", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodPut, "/todos/abc", `{"title":"nope"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad id: got status %d, want 422", rec.Code)
	}

	doJSON(t, mux, http.MethodPost, "/todos/", `{"title":"x"}`)
	rec = doJSON(t, mux, http.MethodPut, "/todos/1", `{"completed":"yes"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad body: got status %d, want 422", rec.Code)
	}
}

func TestToggleTodoOverHTTP(t *testing.T) {
	mux := newTestMux(t)

	doJSON(t, mux, http.MethodPost, "/todos/", `{"title":"toggle me"}`)

	rec := doJSON(t, mux, http.MethodPatch, "/todos/1/toggle", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	if todo := decodeTodo(t, rec); !todo.Completed {
		t.Error("first toggle: want completed=true")
	}

	rec = doJSON(t, mux, http.MethodPatch, "/todos/1/toggle", "")
	if todo := decodeTodo(t, rec); todo.Completed {
		t.Error("second toggle: want completed=false")
	}

	rec = doJSON(t, mux, http.MethodPatch, "/todos/42/toggle", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: got status %d, want 404", rec.Code)
	}
}

func TestDeleteTodoNotFound(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodDelete, "/todos/5", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}

func TestReorderUnknownIDIgnored(t *testing.T) {
	mux := newTestMux(t)

	doJSON(t, mux, http.MethodPost, "/todos/", `{"title":"a"}`)
	doJSON(t, mux, http.MethodPost, "/todos/", `{"title":"b"}`)

	rec := doJSON(t, mux, http.MethodPost, "/todos/reorder", `{"todo_ids":[999]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	todos := decodeTodos(t, rec)
	if len(todos) != 2 {
		t.Fatalf("got %d todos, want 2", len(todos))
	}
	if todos[0].Order != 0 || todos[1].Order != 1 {
		t.Errorf("orders changed: got %+v", todos)
	}
}

func TestReorderInvalidBody(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/todos/reorder", `{"todo_ids":"nope"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("got status %d, want 422", rec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/todos/", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin: got %q, want *", got)
	}

	// 预检请求直接放行
	rec = doJSON(t, mux, http.MethodOptions, "/todos/", "")
	if rec.Code != http.StatusOK {
		t.Errorf("preflight: got status %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "*" {
		t.Errorf("Access-Control-Allow-Methods: got %q, want *", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "*" {
		t.Errorf("Access-Control-Allow-Headers: got %q, want *", got)
	}
}

func TestRequestIDHeader(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/todos/", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestUnmatchedPathWithoutStatic(t *testing.T) {
	mux := newTestMux(t)

	rec := doJSON(t, mux, http.MethodGet, "/whatever", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404", rec.Code)
	}
}
