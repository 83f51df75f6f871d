package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/logger"
	"beatstore-media-service/internal/models"
	"beatstore-media-service/internal/service"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// Заголовки, которые плеер на другом origin должен уметь прочитать
const exposedHeaders = "Content-Type, Content-Length, Accept-Ranges, Content-Range, Content-Disposition"

// Ожидаемый формат: "bytes=start-end", "bytes=start-" или "bytes=-suffix"
var rangeRegex = regexp.MustCompile(`^bytes=(\d*)-(\d*)$`)

type byteRange struct {
	start, end int64 // включительно
}

func (br byteRange) length() int64 {
	return br.end - br.start + 1
}

// parseRange разбирает значение Range для файла размера total.
// Несколько диапазонов и неразборчивые значения считаются невыполнимыми.
func parseRange(header string, total int64) (byteRange, error) {
	matches := rangeRegex.FindStringSubmatch(strings.TrimSpace(header))
	if matches == nil || (matches[1] == "" && matches[2] == "") {
		return byteRange{}, errdefs.Wrapf(errdefs.ErrRangeNotSatisfiable, "malformed range %q", header)
	}

	// Суффикс: последние N байт
	if matches[1] == "" {
		n, err := strconv.ParseInt(matches[2], 10, 64)
		if errors.Is(err, strconv.ErrRange) {
			// Суффикс длиннее любого файла: весь файл
			n, err = total, nil
		}
		if err != nil || n <= 0 || total == 0 {
			return byteRange{}, errdefs.Wrapf(errdefs.ErrRangeNotSatisfiable, "range %q of %d", header, total)
		}
		if n > total {
			n = total
		}
		return byteRange{start: total - n, end: total - 1}, nil
	}

	start, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return byteRange{}, errdefs.Wrapf(errdefs.ErrRangeNotSatisfiable, "range %q", header)
	}

	end := total - 1
	if matches[2] != "" {
		parsed, err := strconv.ParseInt(matches[2], 10, 64)
		switch {
		case errors.Is(err, strconv.ErrRange):
			// Конец за пределами int64 обрезается до конца файла
		case err != nil:
			return byteRange{}, errdefs.Wrapf(errdefs.ErrRangeNotSatisfiable, "range %q", header)
		case parsed < end:
			end = parsed
		}
	}

	if start > end || start >= total {
		return byteRange{}, errdefs.Wrapf(errdefs.ErrRangeNotSatisfiable, "range %q of %d", header, total)
	}
	return byteRange{start: start, end: end}, nil
}

// RangeStreamer отдает один файл целиком или диапазоном байт
type RangeStreamer struct {
	bufferSize        int
	chunkWriteTimeout time.Duration // 0 - без дедлайна на запись блока
}

func NewRangeStreamer(bufferSize int, chunkWriteTimeout time.Duration) *RangeStreamer {
	return &RangeStreamer{bufferSize: bufferSize, chunkWriteTimeout: chunkWriteTimeout}
}

// Serve пишет ответ для файла. Ошибка возвращается, только если в ответ еще ничего не записано;
// сбой посреди передачи логируется и обрывает соединение.
func (s *RangeStreamer) Serve(w http.ResponseWriter, r *http.Request, file *models.ResolvedFile, disposition string) error {
	ctx := r.Context()
	lg := logger.GetLoggerFromCtxSafe(ctx)

	f, err := os.Open(file.Path)
	if os.IsNotExist(err) {
		return errdefs.Wrapf(errdefs.ErrFileNotFound, "open %s", file.Path)
	} else if err != nil {
		return errdefs.Wrapf(errdefs.ErrInternal, "open %s: %v", file.Path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errdefs.Wrapf(errdefs.ErrInternal, "stat %s: %v", file.Path, err)
	}
	total := info.Size()

	header := w.Header()
	header.Set("Accept-Ranges", "bytes")
	header.Set("Access-Control-Expose-Headers", exposedHeaders)

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		setFileHeaders(header, file, disposition, total)
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return nil
		}
		s.copy(ctx, lg, w, f, total, file)
		return nil
	}

	br, err := parseRange(rangeHeader, total)
	if err != nil {
		lg.Debug(ctx, "Range not satisfiable", zap.String("range", rangeHeader), zap.Int64("size", total))
		header.Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	if _, err := f.Seek(br.start, io.SeekStart); err != nil {
		return errdefs.Wrapf(errdefs.ErrInternal, "seek %s: %v", file.Path, err)
	}

	setFileHeaders(header, file, disposition, br.length())
	header.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", br.start, br.end, total))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return nil
	}
	s.copy(ctx, lg, w, io.LimitReader(f, br.length()), br.length(), file)
	return nil
}

func (s *RangeStreamer) copy(ctx context.Context, lg *logger.Logger, w http.ResponseWriter, src io.Reader, want int64, file *models.ResolvedFile) {
	dw := newDeadlineWriter(w, s.chunkWriteTimeout)
	n, err := service.CopyBuffer(ctx, dw, src, make([]byte, s.bufferSize))
	dw.finish(err == nil)
	switch {
	case err != nil && service.IsClientGone(err):
		lg.Info(ctx, "Client went away", zap.String("file", file.DownloadName), zap.String("sent", humanize.Bytes(uint64(n))))
	case err != nil:
		lg.Error(ctx, "Streaming failed", zap.String("path", file.Path), zap.Int64("sent", n), zap.Error(err))
	case n != want:
		lg.Warn(ctx, "File changed while streaming", zap.String("path", file.Path), zap.Int64("sent", n), zap.Int64("expected", want))
	}
}

func setFileHeaders(header http.Header, file *models.ResolvedFile, disposition string, length int64) {
	header.Set("Content-Type", file.ContentType)
	header.Set("Content-Length", strconv.FormatInt(length, 10))
	header.Set("Content-Disposition", ContentDisposition(disposition, file.DownloadName))
	if !file.ModTime.IsZero() {
		header.Set("Last-Modified", file.ModTime.UTC().Format(http.TimeFormat))
	}
	header.Set("Cache-Control", "private, no-store")
}
