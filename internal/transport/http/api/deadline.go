package api

import (
	"net/http"
	"time"
)

// deadlineWriter продлевает дедлайн записи перед каждым блоком.
// Общий WriteTimeout сервера выключен ради длинных архивов, поэтому
// клиент, переставший читать, отваливается по таймауту одного блока.
type deadlineWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
	enabled bool
}

func newDeadlineWriter(w http.ResponseWriter, timeout time.Duration) *deadlineWriter {
	return &deadlineWriter{
		w:       w,
		rc:      http.NewResponseController(w),
		timeout: timeout,
		enabled: timeout > 0,
	}
}

func (d *deadlineWriter) Write(p []byte) (int, error) {
	if d.enabled {
		// httptest.ResponseRecorder и обертки без Unwrap дедлайны не поддерживают
		if err := d.rc.SetWriteDeadline(time.Now().Add(d.timeout)); err != nil {
			d.enabled = false
		}
	}
	return d.w.Write(p)
}

// finish после успешной передачи досылает буфер и снимает дедлайн,
// чтобы он не сработал на следующем запросе keep-alive соединения.
// После ошибки дедлайн остается: соединение закроется, не дожидаясь клиента.
func (d *deadlineWriter) finish(ok bool) {
	if !d.enabled || !ok {
		return
	}
	if err := d.rc.Flush(); err != nil {
		return
	}
	_ = d.rc.SetWriteDeadline(time.Time{})
}
