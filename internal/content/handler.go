package content

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"poolserver/internal/httpmsg"
	"poolserver/pkg/logger"
)

// Handler отвечает на один запрос HTML страницей из каталога
type Handler struct {
	resolver        *Resolver
	maxRequestBytes int
}

func NewHandler(resolver *Resolver, maxRequestBytes int) *Handler {
	return &Handler{
		resolver:        resolver,
		maxRequestBytes: maxRequestBytes,
	}
}

// ServeConn читает запрос из rw, пишет ответ и возвращает его статус.
// Любая ошибка разбора или чтения страницы превращается в пустой ответ 404.
func (h *Handler) ServeConn(rw io.ReadWriter, log *logger.CustomZapLogger) int {
	resp := h.respond(rw, log)

	if _, err := resp.WriteTo(rw); err != nil {
		log.Warn("Не удалось отправить ответ", zap.Int("status", resp.Status), zap.Error(err))
	}
	return resp.Status
}

func (h *Handler) respond(r io.Reader, log *logger.CustomZapLogger) *httpmsg.Response {
	req, err := httpmsg.ReadRequest(r, h.maxRequestBytes)
	if err != nil {
		log.Warn("Некорректный запрос", zap.Error(err))
		return httpmsg.Empty(http.StatusNotFound)
	}

	log.Debug("Получен запрос",
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.String("userAgent", req.UserAgent()))

	if !req.IsGet() && req.Method != httpmsg.MethodHead {
		return httpmsg.Empty(http.StatusMethodNotAllowed)
	}

	body, status, err := h.resolver.Load(req.Path)
	if err != nil {
		log.Error("Не удалось прочитать страницу", zap.String("path", req.Path), zap.Error(err))
		return httpmsg.Empty(http.StatusNotFound)
	}

	resp := httpmsg.HTML(status, body)
	resp.OmitBody = req.Method == httpmsg.MethodHead
	return resp
}
