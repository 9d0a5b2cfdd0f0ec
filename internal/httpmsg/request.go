package httpmsg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
)

const (
	MethodGet  = "GET"
	MethodHead = "HEAD"
	Version10  = "HTTP/1.0"
	Version11  = "HTTP/1.1"
)

var (
	// ErrMalformedRequest запрос пустой или в нем нет строки запроса
	ErrMalformedRequest   = errors.New("httpmsg: malformed request")
	// ErrUnsupportedVersion версия в строке запроса не HTTP/1.0 и не HTTP/1.1
	ErrUnsupportedVersion = errors.New("httpmsg: unsupported version")

	headerEnd = []byte("\r\n\r\n")
)

// Request разобранный HTTP запрос: строка запроса и заголовки.
// Тело запроса не читается.
type Request struct {
	Method  string
	Path    string
	Version string
	Header  map[string]string
}

// Get возвращает значение заголовка без учета регистра имени
func (r *Request) Get(name string) string {
	return r.Header[textproto.CanonicalMIMEHeaderKey(name)]
}

func (r *Request) Host() string      { return r.Get("Host") }
func (r *Request) UserAgent() string { return r.Get("User-Agent") }

// IsGet сообщает, что метод запроса GET
func (r *Request) IsGet() bool {
	return r.Method == MethodGet
}

// ReadRequest читает из r не больше limit байт, пока не встретит конец
// заголовков, и разбирает прочитанное. Если соединение закрылось или истек
// таймаут после получения части данных, разбирается то, что успели прочитать.
func ReadRequest(r io.Reader, limit int) (*Request, error) {
	if limit <= 0 {
		limit = 1024
	}

	buf := make([]byte, limit)
	n := 0
	for n < limit {
		m, err := r.Read(buf[n:])
		n += m
		if bytes.Contains(buf[:n], headerEnd) {
			break
		}
		if err != nil {
			if n == 0 {
				if errors.Is(err, io.EOF) {
					return nil, ErrMalformedRequest
				}
				return nil, fmt.Errorf("read request: %w", err)
			}
			var netErr net.Error
			if errors.Is(err, io.EOF) || (errors.As(err, &netErr) && netErr.Timeout()) {
				break
			}
			return nil, fmt.Errorf("read request: %w", err)
		}
	}

	return ParseRequest(buf[:n])
}

// ParseRequest разбирает строку запроса "METHOD PATH VERSION" и заголовки "Name: value"
func ParseRequest(data []byte) (*Request, error) {
	text := string(data)
	if i := strings.Index(text, "\r\n\r\n"); i >= 0 {
		text = text[:i]
	}
	text = strings.TrimRight(text, "\x00")

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	requestLine := strings.TrimSpace(lines[0])
	if requestLine == "" {
		return nil, ErrMalformedRequest
	}

	parts := strings.Fields(requestLine)
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: request line %q", ErrMalformedRequest, requestLine)
	}

	req := &Request{
		Method: parts[0],
		Path:   parts[1],
		Header: make(map[string]string),
	}
	if len(parts) > 2 {
		req.Version = parts[2]
		if req.Version != Version10 && req.Version != Version11 {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedVersion, req.Version)
		}
	}

	for _, line := range lines[1:] {
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" {
			continue
		}
		req.Header[textproto.CanonicalMIMEHeaderKey(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}

	return req, nil
}

// ClientIP возвращает IP часть адреса клиента, используется как ключ rate limiter
func ClientIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err == nil {
		return host
	}
	return addr.String()
}
