package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Docker 模式下的默认路径，与容器镜像的目录布局对应
const (
	dockerDataDir   = "/app/backend/data"
	dockerStaticDir = "/app/static"
)

// Config 保存运行时配置，全部来自环境变量
type Config struct {
	// Addr 是 HTTP 监听地址
	Addr string
	// DBPath 是 SQLite 数据库文件路径
	DBPath string
	// StaticDir 是前端静态文件目录；为空时不挂载静态路由
	StaticDir string
	// LogLevel 是日志级别（debug/info/warn/error）
	LogLevel string
	// Docker 表示是否运行在容器内（DOCKER_ENV=true）
	Docker bool
}

// Mode 返回健康检查里上报的运行模式
func (c *Config) Mode() string {
	if c.Docker {
		return "Docker"
	}
	return "Development"
}

// Load 从环境变量读取配置
//
// 支持的变量：TODO_ADDR、TODO_DB_PATH、TODO_STATIC_DIR、TODO_LOG_LEVEL、
// DOCKER_ENV。Docker 模式下数据库默认放在数据目录，且默认挂载静态文件。
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TODO")
	v.AutomaticEnv()

	v.SetDefault("addr", ":7789")
	v.SetDefault("log_level", "info")

	// DOCKER_ENV 没有 TODO_ 前缀，需要单独绑定
	if err := v.BindEnv("docker", "DOCKER_ENV"); err != nil {
		return nil, fmt.Errorf("failed to bind DOCKER_ENV: %w", err)
	}

	cfg := &Config{
		Addr:      v.GetString("addr"),
		DBPath:    v.GetString("db_path"),
		StaticDir: v.GetString("static_dir"),
		LogLevel:  strings.ToLower(v.GetString("log_level")),
		Docker:    strings.EqualFold(v.GetString("docker"), "true"),
	}

	if cfg.DBPath == "" {
		if cfg.Docker {
			cfg.DBPath = filepath.Join(dockerDataDir, "todos.db")
		} else {
			cfg.DBPath = "./todos.db"
		}
	}

	if cfg.StaticDir == "" && cfg.Docker {
		cfg.StaticDir = dockerStaticDir
	}

	// 确保数据目录存在
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir %s: %w", dir, err)
		}
	}

	// 静态目录不存在时退回无静态模式，避免挂载一个空的 catch-all
	if cfg.StaticDir != "" {
		if info, err := os.Stat(cfg.StaticDir); err != nil || !info.IsDir() {
			cfg.StaticDir = ""
		}
	}

	return cfg, nil
}
