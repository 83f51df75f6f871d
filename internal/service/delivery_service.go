package service

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	"beatstore-media-service/config"
	"beatstore-media-service/internal/auth"
	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/interfaces"
	"beatstore-media-service/internal/logger"
	"beatstore-media-service/internal/models"
	"beatstore-media-service/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "beatstore-media-service/service"

type deliveryService struct {
	purchases interfaces.PurchaseRepository
	storage   *repository.StorageRepository
	types     *ContentTypeResolver
	gate      *EntitlementGate
	archives  *ArchiveBuilder
	cfg       *config.Config
	tracer    trace.Tracer
}

var _ interfaces.DeliveryService = (*deliveryService)(nil)

func NewDeliveryService(purchases interfaces.PurchaseRepository, storage *repository.StorageRepository, cfg *config.Config) (interfaces.DeliveryService, error) {
	types, err := NewContentTypeResolver(cfg.Storage.MimeCacheSize)
	if err != nil {
		return nil, err
	}
	return &deliveryService{
		purchases: purchases,
		storage:   storage,
		types:     types,
		gate:      NewEntitlementGate(storage, types),
		archives:  NewArchiveBuilder(storage, types, cfg.Storage.CopyBufferSize, cfg.Storage.StemsMinSize),
		cfg:       cfg,
		tracer:    otel.Tracer(tracerName),
	}, nil
}

func (s *deliveryService) startSpan(ctx context.Context, name string, purchaseID int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("purchase.id", purchaseID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// LoadPurchase загружает покупку и проверяет, что запрос делает покупатель или администратор
func (s *deliveryService) LoadPurchase(ctx context.Context, purchaseID int64, who interfaces.Identity, kind models.TargetKind) (p *models.Purchase, err error) {
	ctx, span := s.startSpan(ctx, "delivery.LoadPurchase", purchaseID)
	defer func() { endSpan(span, err) }()

	lg := logger.GetLoggerFromCtxSafe(ctx)

	if who == nil {
		return nil, errdefs.ErrUnauthorized
	}

	p, err = s.purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		lg.Error(ctx, "Failed to load purchase", zap.Int64("purchaseID", purchaseID), zap.Error(err))
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, errdefs.Wrap(errdefs.ErrTargetNotFound, err.Error())
	}

	if err := auth.CanAccessPurchase(who, p); err != nil {
		lg.Warn(ctx, "Purchase access denied",
			zap.Int64("purchaseID", purchaseID),
			zap.String("email", who.GetEmail()))
		return nil, err
	}

	if p.Kind() != kind {
		return nil, errdefs.Wrapf(errdefs.ErrPurchaseTypeMismatch, "purchase %d is a %s purchase, not %s", purchaseID, p.Kind(), kind)
	}

	span.SetAttributes(attribute.String("purchase.kind", string(kind)), attribute.String("purchase.license", string(p.LicenseType)))
	return p, nil
}

// ResolveBeatFile мастер-файл бита с проверкой лицензии
func (s *deliveryService) ResolveBeatFile(ctx context.Context, p *models.Purchase, format models.Format) (file *models.ResolvedFile, err error) {
	_, span := s.startSpan(ctx, "delivery.ResolveBeatFile", p.ID)
	defer func() { endSpan(span, err) }()

	file, err = s.gate.AuthorizeSingleFile(p, format)
	if err != nil {
		logger.GetLoggerFromCtxSafe(ctx).Warn(ctx, "Beat file denied",
			zap.Int64("purchaseID", p.ID),
			zap.String("format", string(format)),
			zap.Error(err))
		return nil, err
	}
	return file, nil
}

// WantsArchive - скачивание бита отдается архивом, если лицензия включает стемы и они загружены
func (s *deliveryService) WantsArchive(ctx context.Context, p *models.Purchase) bool {
	if p.Beat == nil || !RequiresStems(p) || strings.TrimSpace(p.StemsPath) == "" {
		return false
	}
	if _, err := s.storage.ResolveDirectory(p.StemsPath); err == nil {
		return true
	}
	_, _, err := s.storage.ResolveExisting(p.StemsPath)
	return err == nil
}

// ListTracks треки пака или кита, которые реально лежат на диске
func (s *deliveryService) ListTracks(ctx context.Context, p *models.Purchase) ([]models.TrackInfo, error) {
	set := DeliverablesFor(p)
	segment, err := bundleSegment(set.Kind)
	if err != nil {
		return nil, err
	}

	lg := logger.GetLoggerFromCtxSafe(ctx)
	tracks := make([]models.TrackInfo, 0, len(set.Members))
	for _, m := range set.Members {
		resolved, info, err := s.storage.ResolveExisting(m.Ref)
		if err != nil {
			lg.Warn(ctx, "Track unavailable", zap.Int64("purchaseID", p.ID), zap.String("key", m.Key.String()), zap.Error(err))
			continue
		}
		name := m.Title
		if strings.TrimSpace(name) == "" {
			name = filepath.Base(resolved)
		}
		tracks = append(tracks, models.TrackInfo{
			Name:      name,
			Key:       m.Key.String(),
			StreamURL: fmt.Sprintf("%s/api/v1/purchases/%s/%d/stream?key=%s", strings.TrimRight(s.cfg.PublicBaseURL, "/"), segment, p.ID, url.QueryEscape(m.Key.String())),
			SizeBytes: info.Size(),
		})
	}
	return tracks, nil
}

// ResolveBundleMember файл пака или кита по ключу из запроса.
// Ключ сверяется только с ключами, вычисленными из самой покупки.
func (s *deliveryService) ResolveBundleMember(ctx context.Context, p *models.Purchase, key string) (file *models.ResolvedFile, err error) {
	_, span := s.startSpan(ctx, "delivery.ResolveBundleMember", p.ID)
	defer func() { endSpan(span, err) }()

	set := DeliverablesFor(p)
	if _, err := bundleSegment(set.Kind); err != nil {
		return nil, err
	}

	requested, ok := repository.NormalizeKey(key)
	if !ok {
		return nil, errdefs.Wrap(errdefs.ErrInvalidInput, "key is required")
	}
	if !AuthorizeBundleMember(key, set.Keys()) {
		logger.GetLoggerFromCtxSafe(ctx).Warn(ctx, "Bundle key denied",
			zap.Int64("purchaseID", p.ID),
			zap.String("key", requested.String()))
		return nil, errdefs.ErrKeyNotAuthorized
	}

	var member models.Deliverable
	for _, m := range set.Members {
		if m.Key == requested {
			member = m
			break
		}
	}

	resolved, info, err := s.storage.ResolveExisting(member.Ref)
	if err != nil {
		return nil, err
	}
	return &models.ResolvedFile{
		Path:         resolved,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		ContentType:  s.types.Resolve(resolved),
		DownloadName: entryName(member.Title, resolved, s.types.DetectExtension),
	}, nil
}

// ArchiveName имя zip файла для Content-Disposition
func (s *deliveryService) ArchiveName(p *models.Purchase) string {
	name := SanitizeFileName(p.TargetTitle())
	if name == "" {
		name = fmt.Sprintf("purchase-%d", p.ID)
	}
	return name + ".zip"
}

// WriteArchive пишет архив покупки в out
func (s *deliveryService) WriteArchive(ctx context.Context, p *models.Purchase, out io.Writer) (err error) {
	ctx, span := s.startSpan(ctx, "delivery.WriteArchive", p.ID)
	defer func() { endSpan(span, err) }()

	stats, err := s.archives.BuildToStream(ctx, p, DeliverablesFor(p), out)
	if stats != nil {
		span.SetAttributes(
			attribute.Int("archive.entries", stats.Entries),
			attribute.Int("archive.skipped", stats.Skipped),
			attribute.Int64("archive.bytes", stats.Bytes))
	}
	return err
}

// StemsStatus должна ли покупка включать стемы и есть ли подходящие файлы
func (s *deliveryService) StemsStatus(ctx context.Context, purchaseID int64) (*models.StemsStatus, error) {
	p, err := s.purchases.GetPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}

	status := &models.StemsStatus{PurchaseID: p.ID, RequiresStems: RequiresStems(p)}
	if strings.TrimSpace(p.StemsPath) == "" {
		return status, nil
	}

	if dir, err := s.storage.ResolveDirectory(p.StemsPath); err == nil {
		files, err := s.storage.ListFiles(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if isEligibleStem(f.Rel, f.Size, s.cfg.Storage.StemsMinSize, false) {
				status.StemsAvailable = true
				break
			}
		}
		return status, nil
	}

	if resolved, info, err := s.storage.ResolveExisting(p.StemsPath); err == nil {
		status.StemsAvailable = isEligibleStem(filepath.Base(resolved), info.Size(), s.cfg.Storage.StemsMinSize, true)
	}
	return status, nil
}

func bundleSegment(kind models.TargetKind) (string, error) {
	switch kind {
	case models.TargetPack:
		return "packs", nil
	case models.TargetKit:
		return "kits", nil
	default:
		return "", errdefs.ErrPurchaseTypeMismatch
	}
}
