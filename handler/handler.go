package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alvin999/PostItTodo/database"
)

// CreateTodoRequest 创建待办事项请求体
//
// Title 用指针区分“缺字段”和“空字符串”，两者都算校验失败。
type CreateTodoRequest struct {
	Title *string `json:"title" example:"Buy groceries"`
}

// UpdateTodoRequest 更新待办事项请求体，缺省字段保持原值
type UpdateTodoRequest struct {
	Title     *string `json:"title,omitempty" example:"Buy oat milk"`
	Completed *bool   `json:"completed,omitempty" example:"true"`
}

// ReorderRequest 重新排序请求体
type ReorderRequest struct {
	TodoIDs []int `json:"todo_ids"`
}

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Message string `json:"message"`
}

// 超时配置
const (
	ListTimeout    = 5 * time.Second // 列表查询超时
	CreateTimeout  = 3 * time.Second // 创建超时
	UpdateTimeout  = 3 * time.Second // 更新超时
	DeleteTimeout  = 2 * time.Second // 删除超时
	ReorderTimeout = 5 * time.Second // 批量重排超时
)

// 请求体大小上限
const maxBodySize = 1 << 20 // 1MB

// Handler 处理器结构体
type Handler struct {
	store  *database.Store
	logger *log.Logger
	mode   string
}

// New 创建新的处理器；mode 用于健康检查上报（Docker / Development）
func New(store *database.Store, logger *log.Logger, mode string) *Handler {
	return &Handler{store: store, logger: logger, mode: mode}
}

// sendJSON 发送JSON响应
func (h *Handler) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		// JSON编码失败，直接返回纯文本错误，不要再尝试调用sendError（会递归）
		h.logger.Error("failed to encode response", "err", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error: Failed to encode response"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// sendError 发送错误响应
func (h *Handler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{Message: message})
}

// handleStoreError 统一处理超时/取消之外未被上层识别的存储层错误
func (h *Handler) handleStoreError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		h.logger.Warn("store operation timeout", "op", op, "err", err)
		h.sendError(w, http.StatusRequestTimeout, "request timed out, please retry")
		return
	}
	if errors.Is(err, context.Canceled) {
		// 客户端取消请求,不需要响应
		return
	}
	h.logger.Error("store operation failed", "op", op, "err", err)
	h.sendError(w, http.StatusInternalServerError, err.Error())
}

// parseID 解析路径里的待办事项 ID
func parseID(r *http.Request) (int, error) {
	idStr := r.PathValue("id")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, fmt.Errorf("invalid todo id %q", idStr)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid todo id %d", id)
	}
	return id, nil
}

// HealthCheck 健康检查
// @Summary 健康检查
// @Description 返回运行状态和运行模式
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /api/health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"mode":   h.mode,
	})
}

// ListTodos 获取待办事项列表(带超时控制)
// @Summary 获取全部待办事项
// @Description 按 order 升序返回全部待办事项
// @Tags todos
// @Produce json
// @Success 200 {array} model.Todo
// @Failure 500 {object} handler.ErrorResponse
// @Router /todos/ [get]
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ListTimeout)
	defer cancel()

	todos, err := h.store.ListTodos(ctx)
	if err != nil {
		h.handleStoreError(w, "list", err)
		return
	}

	h.sendJSON(w, http.StatusOK, todos)
}

// CreateTodo 创建待办事项(带超时控制)
// @Summary 创建待办事项
// @Description 新项追加在列表末尾，completed 初始为 false
// @Tags todos
// @Accept json
// @Produce json
// @Param todo body handler.CreateTodoRequest true "待办事项内容"
// @Success 201 {object} model.Todo
// @Failure 422 {object} handler.ErrorResponse
// @Router /todos/ [post]
func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), CreateTimeout)
	defer cancel()

	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.Title == nil || *req.Title == "" {
		h.sendError(w, http.StatusUnprocessableEntity, "title must be a non-empty string")
		return
	}

	todo, err := h.store.CreateTodo(ctx, *req.Title)
	if err != nil {
		h.handleStoreError(w, "create", err)
		return
	}

	h.sendJSON(w, http.StatusCreated, todo)
}

// UpdateTodo 更新待办事项(带超时控制)
// @Summary 更新待办事项
// @Description 部分更新：只应用请求体里出现的字段
// @Tags todos
// @Accept json
// @Produce json
// @Param id path int true "待办事项ID"
// @Param todo body handler.UpdateTodoRequest true "待办事项更新内容"
// @Success 200 {object} model.Todo
// @Failure 404 {object} handler.ErrorResponse
// @Failure 422 {object} handler.ErrorResponse
// @Router /todos/{id} [put]
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), UpdateTimeout)
	defer cancel()

	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	id, err := parseID(r)
	if err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	var req UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	todo, err := h.store.UpdateTodo(ctx, id, req.Title, req.Completed)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.sendError(w, http.StatusNotFound, "todo not found")
			return
		}
		h.handleStoreError(w, "update", err)
		return
	}

	h.sendJSON(w, http.StatusOK, todo)
}

// ToggleTodo 切换完成状态(带超时控制)
// @Summary 切换完成状态
// @Description 翻转 completed 字段
// @Tags todos
// @Produce json
// @Param id path int true "待办事项ID"
// @Success 200 {object} model.Todo
// @Failure 404 {object} handler.ErrorResponse
// @Router /todos/{id}/toggle [patch]
func (h *Handler) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), UpdateTimeout)
	defer cancel()

	id, err := parseID(r)
	if err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	todo, err := h.store.ToggleTodo(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.sendError(w, http.StatusNotFound, "todo not found")
			return
		}
		h.handleStoreError(w, "toggle", err)
		return
	}

	h.sendJSON(w, http.StatusOK, todo)
}

// DeleteTodo 删除待办事项(带超时控制)
// @Summary 删除待办事项
// @Description 永久删除，成功时无响应体
// @Tags todos
// @Param id path int true "待办事项ID"
// @Success 204
// @Failure 404 {object} handler.ErrorResponse
// @Router /todos/{id} [delete]
func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), DeleteTimeout)
	defer cancel()

	id, err := parseID(r)
	if err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.store.DeleteTodo(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.sendError(w, http.StatusNotFound, "todo not found")
			return
		}
		h.handleStoreError(w, "delete", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ReorderTodos 重新排序(带超时控制)
// @Summary 重新排序
// @Description 按给定 ID 顺序重写 order，返回重排后的完整列表
// @Tags todos
// @Accept json
// @Produce json
// @Param reorder body handler.ReorderRequest true "ID 顺序"
// @Success 200 {array} model.Todo
// @Failure 422 {object} handler.ErrorResponse
// @Failure 500 {object} handler.ErrorResponse
// @Router /todos/reorder [post]
func (h *Handler) ReorderTodos(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), ReorderTimeout)
	defer cancel()

	defer r.Body.Close()
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	todos, err := h.store.Reorder(ctx, req.TodoIDs)
	if err != nil {
		// 事务已在存储层回滚，响应带上底层错误信息
		h.handleStoreError(w, "reorder", err)
		return
	}

	h.sendJSON(w, http.StatusOK, todos)
}
