package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"beatstore-media-service/internal/logger"
	"beatstore-media-service/internal/models"
	"beatstore-media-service/internal/repository"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
)

const stemsFolder = "stems"

// Уже сжатые форматы пишутся без компрессии
var storedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".zip":  true,
	".ogg":  true,
	".m4a":  true,
}

// ArchiveStats итог сборки архива
type ArchiveStats struct {
	Entries int
	Skipped int
	Bytes   int64
}

// ArchiveBuilder пишет zip архив покупки прямо в поток ответа.
// Архив не собирается в памяти: каждый файл копируется с диска через буфер фиксированного размера.
type ArchiveBuilder struct {
	storage      *repository.StorageRepository
	types        *ContentTypeResolver
	bufferSize   int
	stemsMinSize int64
}

func NewArchiveBuilder(storage *repository.StorageRepository, types *ContentTypeResolver, bufferSize int, stemsMinSize int64) *ArchiveBuilder {
	return &ArchiveBuilder{
		storage:      storage,
		types:        types,
		bufferSize:   bufferSize,
		stemsMinSize: stemsMinSize,
	}
}

// archiveSession состояние одной сборки
type archiveSession struct {
	ctx        context.Context
	b          *ArchiveBuilder
	zw         *zip.Writer
	buf        []byte
	names      *entryNamer
	stats      ArchiveStats
	lg         *logger.Logger
	purchaseID int64
}

// BuildToStream пишет архив в out. Порядок записей: лицензия, основные файлы, стемы.
// Отсутствующие или нечитаемые файлы пропускаются; ошибка записи в out прерывает сборку.
func (b *ArchiveBuilder) BuildToStream(ctx context.Context, p *models.Purchase, set *models.DeliverableSet, out io.Writer) (*ArchiveStats, error) {
	s := &archiveSession{
		ctx:        ctx,
		b:          b,
		zw:         zip.NewWriter(out),
		buf:        make([]byte, b.bufferSize),
		names:      newEntryNamer(),
		lg:         logger.GetLoggerFromCtxSafe(ctx),
		purchaseID: p.ID,
	}

	// 1. Лицензия
	if set.LicenseRef != "" {
		if err := s.addRef(set.LicenseRef, fmt.Sprintf("LICENSE-%d.pdf", p.ID)); err != nil {
			return &s.stats, err
		}
	}

	// 2-4. Основные файлы
	if err := s.addMembers(set); err != nil {
		return &s.stats, err
	}

	// 5. Стемы
	if RequiresStems(p) && set.StemsRef != "" {
		if err := s.addStems(set.StemsRef); err != nil {
			return &s.stats, err
		}
	}

	if err := s.zw.Close(); err != nil {
		return &s.stats, &CopyError{Op: "write", Err: err}
	}

	s.lg.Info(ctx, "Archive written",
		zap.Int64("purchaseID", p.ID),
		zap.Int("entries", s.stats.Entries),
		zap.Int("skipped", s.stats.Skipped),
		zap.String("size", humanize.Bytes(uint64(s.stats.Bytes))))
	return &s.stats, nil
}

func (s *archiveSession) addMembers(set *models.DeliverableSet) error {
	switch set.Kind {
	case models.TargetBeat, models.TargetPack:
		for _, m := range set.Members {
			if err := s.addNamed(m, func(resolved string) string {
				return s.names.unique(entryName(m.Title, resolved, s.b.types.DetectExtension))
			}); err != nil {
				return err
			}
		}
	case models.TargetKit:
		folder := SanitizeFileName(set.Title)
		if folder == "" {
			folder = fmt.Sprintf("kit-%d", set.PurchaseID)
		}
		for _, m := range set.Members {
			if err := s.addNamed(m, func(resolved string) string {
				leaf := SanitizeFileName(filepath.Base(resolved))
				return s.names.unique(folder + "/" + leaf)
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// addNamed разрешает файл участника и добавляет его под именем, которое вычисляется по итоговому пути
func (s *archiveSession) addNamed(m models.Deliverable, name func(resolved string) string) error {
	resolved, info, err := s.b.storage.ResolveExisting(m.Ref)
	if err != nil {
		s.skip(m.Key.String(), err)
		return nil
	}
	return s.addFile(models.ArchiveMember{Name: name(resolved), Path: resolved}, info)
}

func (s *archiveSession) addRef(ref, name string) error {
	resolved, info, err := s.b.storage.ResolveExisting(ref)
	if err != nil {
		s.skip(ref, err)
		return nil
	}
	s.names.reserve(name)
	return s.addFile(models.ArchiveMember{Name: name, Path: resolved}, info)
}

func (s *archiveSession) addStems(ref string) error {
	if dir, err := s.b.storage.ResolveDirectory(ref); err == nil {
		files, err := s.b.storage.ListFiles(s.ctx, dir)
		if err != nil {
			if ctxErr := s.ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.skip(ref, err)
			return nil
		}
		for _, f := range files {
			if !isEligibleStem(f.Rel, f.Size, s.b.stemsMinSize, false) {
				s.lg.Debug(s.ctx, "Stem file excluded", zap.String("file", f.Rel), zap.Int64("size", f.Size))
				continue
			}
			info, err := os.Stat(f.Path)
			if err != nil {
				s.skip(f.Rel, err)
				continue
			}
			member := models.ArchiveMember{Name: s.names.unique(stemsFolder + "/" + f.Rel), Path: f.Path}
			if err := s.addFile(member, info); err != nil {
				return err
			}
		}
		return nil
	}

	// Стемы загружены одним файлом
	resolved, info, err := s.b.storage.ResolveExisting(ref)
	if err != nil {
		s.skip(ref, err)
		return nil
	}
	leaf := filepath.Base(resolved)
	if !isEligibleStem(leaf, info.Size(), s.b.stemsMinSize, true) {
		s.lg.Debug(s.ctx, "Stem file excluded", zap.String("file", leaf), zap.Int64("size", info.Size()))
		return nil
	}
	return s.addFile(models.ArchiveMember{Name: s.names.unique(stemsFolder + "/" + SanitizeFileName(leaf)), Path: resolved}, info)
}

// addFile копирует один файл в архив. Ошибка открытия - пропуск, ошибка записи - конец сборки.
func (s *archiveSession) addFile(m models.ArchiveMember, info os.FileInfo) error {
	if err := s.ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(m.Path)
	if err != nil {
		s.skip(m.Name, err)
		return nil
	}
	defer f.Close()

	method := zip.Deflate
	if storedExtensions[strings.ToLower(path.Ext(m.Name))] {
		method = zip.Store
	}
	header := &zip.FileHeader{
		Name:     m.Name,
		Method:   method,
		Modified: info.ModTime(),
	}
	header.SetMode(0644)

	w, err := s.zw.CreateHeader(header)
	if err != nil {
		return &CopyError{Op: "write", Err: err}
	}

	n, err := CopyBuffer(s.ctx, w, f, s.buf)
	s.stats.Bytes += n
	if err != nil {
		return fmt.Errorf("archive entry %s: %w", m.Name, err)
	}
	s.stats.Entries++
	return nil
}

func (s *archiveSession) skip(what string, err error) {
	s.stats.Skipped++
	s.lg.Warn(s.ctx, "Archive member skipped",
		zap.Int64("purchaseID", s.purchaseID),
		zap.String("member", what),
		zap.Error(err))
}
