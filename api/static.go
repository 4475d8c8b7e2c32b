package api

import (
	"net/http"
	"os"
	"path/filepath"
)

// registerStatic 挂载打包好的前端
//
// /assets/ 下直接走文件服务；其余 GET 路径命中实际文件时返回文件，
// 否则一律回退到 index.html，交给前端路由处理。
func registerStatic(mux *http.ServeMux, staticDir string, withMiddlewares func(http.HandlerFunc) http.HandlerFunc) {
	assetsDir := filepath.Join(staticDir, "assets")
	assets := http.StripPrefix("/assets/", http.FileServer(http.Dir(assetsDir)))
	mux.Handle("GET /assets/", assets)

	mux.HandleFunc("GET /", withMiddlewares(func(w http.ResponseWriter, r *http.Request) {
		serveSPA(staticDir, w, r)
	}))
}

// serveSPA 返回请求路径对应的静态文件，未命中时回退到 index.html
func serveSPA(staticDir string, w http.ResponseWriter, r *http.Request) {
	// Clean 防止 ../ 逃出静态目录
	name := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))

	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		http.ServeFile(w, r, name)
		return
	}

	index := filepath.Join(staticDir, "index.html")
	if _, err := os.Stat(index); err == nil {
		http.ServeFile(w, r, index)
		return
	}

	http.NotFound(w, r)
}
