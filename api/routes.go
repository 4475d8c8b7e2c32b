package api

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/alvin999/PostItTodo/handler"
)

// corsMiddleware 处理 CORS 跨域请求，放行所有来源、方法和请求头
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		// 处理预检请求
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

// recoverMiddleware 捕获 panic 防止服务崩溃
func recoverMiddleware(logger *log.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered", "err", err, "path", r.URL.Path)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next(w, r)
		}
	}
}

// statusRecorder 记录写出的状态码，供访问日志使用
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// requestLogMiddleware 给每个请求分配 ID 并记录访问日志
func requestLogMiddleware(logger *log.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			w.Header().Set("X-Request-ID", requestID)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			next(rec, r)

			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", rec.status,
				"duration", time.Since(start),
				"request_id", requestID,
			)
		}
	}
}

// chain 链接多个中间件
func chain(f http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	for i := len(middlewares) - 1; i >= 0; i-- {
		f = middlewares[i](f)
	}
	return f
}

// SetupRoutes 注册全部路由
//
// API 路由先注册；staticDir 非空时最后挂载静态文件和 SPA catch-all，
// 未匹配的路径回退到 index.html。
func SetupRoutes(h *handler.Handler, logger *log.Logger, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	withMiddlewares := func(f http.HandlerFunc) http.HandlerFunc {
		return chain(f, requestLogMiddleware(logger), corsMiddleware, recoverMiddleware(logger))
	}

	optionsHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	mux.HandleFunc("GET /api/health", withMiddlewares(h.HealthCheck))

	mux.HandleFunc("GET /todos/{$}", withMiddlewares(h.ListTodos))
	mux.HandleFunc("POST /todos/{$}", withMiddlewares(h.CreateTodo))
	mux.HandleFunc("OPTIONS /todos/{$}", withMiddlewares(optionsHandler))

	// 字面量模式比 {id} 通配更精确，reorder 不会被当成 ID
	mux.HandleFunc("POST /todos/reorder", withMiddlewares(h.ReorderTodos))
	mux.HandleFunc("OPTIONS /todos/reorder", withMiddlewares(optionsHandler))

	mux.HandleFunc("PUT /todos/{id}", withMiddlewares(h.UpdateTodo))
	mux.HandleFunc("PATCH /todos/{id}/toggle", withMiddlewares(h.ToggleTodo))
	mux.HandleFunc("DELETE /todos/{id}", withMiddlewares(h.DeleteTodo))
	mux.HandleFunc("OPTIONS /todos/{id}", withMiddlewares(optionsHandler))
	mux.HandleFunc("OPTIONS /todos/{id}/toggle", withMiddlewares(optionsHandler))

	if staticDir != "" {
		registerStatic(mux, staticDir, withMiddlewares)
		logger.Info("static frontend mounted", "dir", staticDir)
	}

	return mux
}
