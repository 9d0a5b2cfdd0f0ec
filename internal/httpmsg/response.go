package httpmsg

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const htmlContentType = "text/html; charset=utf-8"

// Response HTTP ответ с телом целиком в памяти. OmitBody нужен для HEAD:
// заголовки описывают тело, но само тело не пишется.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	OmitBody    bool
}

// HTML создает ответ с HTML телом
func HTML(status int, body []byte) *Response {
	return &Response{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

// Empty создает ответ без тела
func Empty(status int) *Response {
	return &Response{Status: status}
}

// StatusLine возвращает строку статуса, например "HTTP/1.1 404 NOT FOUND"
func StatusLine(status int) string {
	return fmt.Sprintf("%s %d %s", Version11, status, strings.ToUpper(http.StatusText(status)))
}

// WriteTo пишет ответ целиком. Соединение после ответа закрывается сервером.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.Grow(128 + len(r.Body))

	fmt.Fprintf(&buf, "%s\r\n", StatusLine(r.Status))
	fmt.Fprintf(&buf, "Content-Length: %d\r\n", len(r.Body))
	if len(r.Body) > 0 && r.ContentType != "" {
		fmt.Fprintf(&buf, "Content-Type: %s\r\n", r.ContentType)
	}
	buf.WriteString("Connection: close\r\n\r\n")
	if !r.OmitBody {
		buf.Write(r.Body)
	}

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("write response: %w", err)
	}
	return int64(n), nil
}
