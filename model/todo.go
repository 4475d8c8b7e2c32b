package model

// Todo 表示一个待办事项
type Todo struct {
	ID        int    `json:"id" db:"id"`
	Title     string `json:"title" db:"title"`
	Completed bool   `json:"completed" db:"completed"`
	// Order 决定展示顺序，越小越靠前；除 reorder 外不保证连续或唯一
	Order int `json:"order" db:"order"`
}

// NewTodo 创建一个新的待办事项，追加到列表末尾
func NewTodo(title string, order int) *Todo {
	return &Todo{
		Title:     title,
		Completed: false,
		Order:     order,
	}
}
