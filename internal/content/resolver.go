package content

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Resolver отображает путь запроса на HTML файл в каталоге Root
type Resolver struct {
	Root         string
	IndexFile    string
	NotFoundFile string
}

// NewResolver создает резолвер, пустые имена файлов заменяются на index.html и 404.html
func NewResolver(root, indexFile, notFoundFile string) *Resolver {
	if indexFile == "" {
		indexFile = "index.html"
	}
	if notFoundFile == "" {
		notFoundFile = "404.html"
	}
	return &Resolver{
		Root:         root,
		IndexFile:    indexFile,
		NotFoundFile: notFoundFile,
	}
}

// Resolve возвращает файл для пути и ожидаемый статус ответа.
//
//	"/"          -> IndexFile, 200
//	"*.ico"      -> NotFoundFile, 404
//	"/name"      -> name.html, 200
//
// Очищенный путь не может выйти за пределы Root.
func (r *Resolver) Resolve(reqPath string) (string, int) {
	if i := strings.IndexAny(reqPath, "?#"); i >= 0 {
		reqPath = reqPath[:i]
	}

	if strings.HasSuffix(reqPath, ".ico") {
		return r.notFound(), http.StatusNotFound
	}

	name := strings.TrimPrefix(path.Clean("/"+reqPath), "/")
	if name == "" {
		return filepath.Join(r.Root, r.IndexFile), http.StatusOK
	}
	if !filepath.IsLocal(filepath.FromSlash(name)) {
		return r.notFound(), http.StatusNotFound
	}

	return filepath.Join(r.Root, filepath.FromSlash(name)+".html"), http.StatusOK
}

// Load читает страницу для пути. Если страницы нет, отдается NotFoundFile со статусом 404.
// Ошибка возвращается, только если не удалось прочитать и NotFoundFile.
func (r *Resolver) Load(reqPath string) ([]byte, int, error) {
	file, status := r.Resolve(reqPath)

	body, err := os.ReadFile(file)
	if err == nil {
		return body, status, nil
	}
	if !errors.Is(err, os.ErrNotExist) || file == r.notFound() {
		return nil, 0, fmt.Errorf("read page %s: %w", file, err)
	}

	body, err = os.ReadFile(r.notFound())
	if err != nil {
		return nil, 0, fmt.Errorf("read not found page: %w", err)
	}
	return body, http.StatusNotFound, nil
}

func (r *Resolver) notFound() string {
	return filepath.Join(r.Root, r.NotFoundFile)
}
