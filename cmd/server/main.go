package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alvin999/PostItTodo/api"
	"github.com/alvin999/PostItTodo/config"
	"github.com/alvin999/PostItTodo/database"
	"github.com/alvin999/PostItTodo/handler"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          "todo",
		Level:           level,
		ReportTimestamp: true,
	})

	// 初始化数据库
	store, err := database.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", "err", err)
	}
	defer store.Close()

	// 创建处理器并设置路由
	h := handler.New(store, logger, cfg.Mode())
	mux := api.SetupRoutes(h, logger, cfg.StaticDir)

	// 启动服务器
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	go func() {
		logger.Info("server started", "addr", cfg.Addr, "mode", cfg.Mode())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", "err", err)
		}
	}()

	// 等待中断信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}
}
