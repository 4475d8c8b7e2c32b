package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/alvin999/PostItTodo/model"
)

// ErrNotFound 表示指定 ID 的待办事项不存在
var ErrNotFound = errors.New("todo not found")

const selectColumns = `SELECT id, title, completed, "order" FROM todos`

// Store 封装对 todos 表的全部读写
type Store struct {
	db     *sqlx.DB
	logger *log.Logger
}

// New 打开（或创建）SQLite 数据库并初始化表结构
func New(dbPath string, logger *log.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// WAL 模式提升并发读性能
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db, logger: logger}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("database initialized", "path", dbPath)
	return s, nil
}

// initSchema 初始化数据库表
//
// "order" 是 SQL 保留字，列名保持不变并在所有语句中加引号，
// 旧版 todos.db 文件可以直接继续使用。
func (s *Store) initSchema() error {
	schema := `
  	CREATE TABLE IF NOT EXISTS todos (
  		id INTEGER PRIMARY KEY AUTOINCREMENT,
  		title TEXT NOT NULL,
  		completed BOOLEAN NOT NULL DEFAULT 0,
  		"order" INTEGER NOT NULL DEFAULT 0
  	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}

	return nil
}

// Close 关闭数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// rollback 回滚事务并记录失败原因
func (s *Store) rollback(tx *sqlx.Tx, cause error) {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		s.logger.Error("transaction rollback failed", "err", rbErr, "cause", cause)
	}
}

// ListTodos 按 order 升序返回全部待办事项，空表返回空切片
func (s *Store) ListTodos(ctx context.Context) ([]model.Todo, error) {
	todos := []model.Todo{}
	err := s.db.SelectContext(ctx, &todos, selectColumns+` ORDER BY "order", id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	return todos, nil
}

// CreateTodo 创建待办事项，order 取当前总数，使新项追加在末尾
//
// 计数和插入放在同一个事务里，避免并发创建时 order 取值错位。
// 注意：使用命名返回值 (err error)，让 defer 能访问到错误
func (s *Store) CreateTodo(ctx context.Context, title string) (todo *model.Todo, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			s.rollback(tx, err)
		}
	}()

	var count int
	if err = tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM todos"); err != nil {
		return nil, fmt.Errorf("failed to count todos: %w", err)
	}

	todo = model.NewTodo(title, count)

	result, err := tx.ExecContext(ctx,
		`INSERT INTO todos (title, completed, "order") VALUES (?, ?, ?)`,
		todo.Title, todo.Completed, todo.Order,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	todo.ID = int(id)

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return todo, nil
}

// GetTodoByID 根据 ID 获取待办事项，不存在时返回 ErrNotFound
func (s *Store) GetTodoByID(ctx context.Context, id int) (*model.Todo, error) {
	var todo model.Todo
	err := s.db.GetContext(ctx, &todo, selectColumns+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo %d: %w", id, err)
	}
	return &todo, nil
}

// UpdateTodo 部分更新待办事项：nil 字段保持原值，非 nil 字段整体替换
// 注意：使用命名返回值 (err error)，让 defer 能访问到错误
func (s *Store) UpdateTodo(ctx context.Context, id int, title *string, completed *bool) (todo *model.Todo, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			s.rollback(tx, err)
		}
	}()

	var current model.Todo
	err = tx.GetContext(ctx, &current, selectColumns+` WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo %d: %w", id, err)
	}

	if title != nil {
		current.Title = *title
	}
	if completed != nil {
		current.Completed = *completed
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE todos SET title = ?, completed = ? WHERE id = ?`,
		current.Title, current.Completed, id,
	); err != nil {
		return nil, fmt.Errorf("failed to update todo %d: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &current, nil
}

// ToggleTodo 翻转完成状态，返回翻转后的待办事项
// 注意：使用命名返回值 (err error)，让 defer 能访问到错误
func (s *Store) ToggleTodo(ctx context.Context, id int) (todo *model.Todo, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			s.rollback(tx, err)
		}
	}()

	result, err := tx.ExecContext(ctx,
		`UPDATE todos SET completed = NOT completed WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to toggle todo %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		err = ErrNotFound
		return nil, err
	}

	var current model.Todo
	if err = tx.GetContext(ctx, &current, selectColumns+` WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to get todo %d: %w", id, err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &current, nil
}

// DeleteTodo 删除待办事项，不存在时返回 ErrNotFound
func (s *Store) DeleteTodo(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete todo %d: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Reorder 批量重排：按给定顺序把每个 ID 的 order 设为它的下标（全有或全无）
//
// 不存在的 ID 静默跳过，但仍占用一个下标；未出现在列表里的待办事项
// 保持原 order 不变，因此传入部分 ID 时可能出现重复的 order 值，
// 这是有意保留的行为，不做归一化。
// 注意：使用命名返回值 (err error)，让 defer 能访问到错误
func (s *Store) Reorder(ctx context.Context, ids []int) (todos []model.Todo, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			s.rollback(tx, err)
		}
	}()

	for index, id := range ids {
		// 检查 Context 是否已取消
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return nil, err
		default:
		}

		// 不检查 RowsAffected：未知 ID 按约定跳过，不算错误
		if _, err = tx.ExecContext(ctx,
			`UPDATE todos SET "order" = ? WHERE id = ?`, index, id,
		); err != nil {
			return nil, fmt.Errorf("failed to reorder todo %d: %w", id, err)
		}
	}

	todos = []model.Todo{}
	if err = tx.SelectContext(ctx, &todos, selectColumns+` ORDER BY "order", id`); err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return todos, nil
}
