package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"beatstore-media-service/internal/errdefs"
)

// CopyError ошибка копирования с указанием стороны: чтение с диска или запись клиенту
type CopyError struct {
	Op  string // "read" или "write"
	Err error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// Is: сбой чтения с диска - внутренняя ошибка сервера
func (e *CopyError) Is(target error) bool {
	return target == errdefs.ErrInternal && e.Op == "read"
}

// IsClientGone true, если клиент перестал читать ответ
func IsClientGone(err error) bool {
	var ce *CopyError
	if errdefs.As(err, &ce) && ce.Op == "write" {
		return true
	}
	return errors.Is(err, context.Canceled)
}

// CopyBuffer копирует src в dst через buf, проверяя контекст перед каждым блоком.
// Память ограничена размером buf независимо от объема данных.
func CopyBuffer(ctx context.Context, dst io.Writer, src io.Reader, buf []byte) (int64, error) {
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := dst.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, &CopyError{Op: "write", Err: werr}
			}
			if m != n {
				return written, &CopyError{Op: "write", Err: io.ErrShortWrite}
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, &CopyError{Op: "read", Err: rerr}
		}
	}
}
