package service

import (
	"path/filepath"
	"strings"

	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/models"
	"beatstore-media-service/internal/repository"
)

// RequiresStems - лицензия включает стемы
func RequiresStems(p *models.Purchase) bool {
	return p.LicenseType == models.LicensePremium || p.LicenseType == models.LicenseExclusive
}

// ParseFormat разбирает параметр format; пустое значение - auto
func ParseFormat(s string) (models.Format, error) {
	switch models.Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", models.FormatAuto:
		return models.FormatAuto, nil
	case models.FormatMP3:
		return models.FormatMP3, nil
	case models.FormatWAV:
		return models.FormatWAV, nil
	default:
		return "", errdefs.Wrapf(errdefs.ErrInvalidFormat, "format %q", s)
	}
}

// DeliverablesFor вычисляет набор файлов покупки только из записи каталога
func DeliverablesFor(p *models.Purchase) *models.DeliverableSet {
	set := &models.DeliverableSet{
		PurchaseID: p.ID,
		Kind:       p.Kind(),
		Title:      p.TargetTitle(),
		LicenseRef: p.LicensePath,
	}
	if RequiresStems(p) {
		set.StemsRef = p.StemsPath
	}

	add := func(ref, title string) {
		if key, ok := repository.NormalizeKey(ref); ok {
			set.Members = append(set.Members, models.Deliverable{Key: key, Ref: ref, Title: title})
		}
	}

	switch {
	case p.Beat != nil:
		add(p.Beat.AudioPath, p.Beat.Title)
	case p.Pack != nil:
		for _, b := range p.Pack.Beats {
			add(b.AudioPath, b.Title)
		}
	case p.Kit != nil:
		for _, a := range p.Kit.Assets {
			add(a.StorageKey, a.Title)
		}
	}
	return set
}

// AuthorizeBundleMember - запрошенный ключ после нормализации совпадает с одним из ключей,
// вычисленных из самой покупки
func AuthorizeBundleMember(requestedKey string, allowed []models.StorageKey) bool {
	key, ok := repository.NormalizeKey(requestedKey)
	if !ok {
		return false
	}
	for _, k := range allowed {
		if k == key {
			return true
		}
	}
	return false
}

// EntitlementGate проверяет права покупки на конкретный файл
type EntitlementGate struct {
	storage *repository.StorageRepository
	types   *ContentTypeResolver
}

func NewEntitlementGate(storage *repository.StorageRepository, types *ContentTypeResolver) *EntitlementGate {
	return &EntitlementGate{storage: storage, types: types}
}

// AuthorizeSingleFile проверяет мастер-файл бита против лицензии и запрошенного формата
func (g *EntitlementGate) AuthorizeSingleFile(p *models.Purchase, format models.Format) (*models.ResolvedFile, error) {
	if p.Beat == nil {
		return nil, errdefs.ErrPurchaseTypeMismatch
	}

	path, info, err := g.storage.ResolveExisting(p.Beat.AudioPath)
	if err != nil {
		return nil, errdefs.Wrapf(err, "beat %d master", p.Beat.ID)
	}

	contentType := g.types.Resolve(path)
	ext := strings.ToLower(filepath.Ext(path))
	storedIsWav := ext == ".wav" || ext == ".wave"
	storedIsMp3 := ext == ".mp3"
	if !storedIsWav && !storedIsMp3 {
		storedIsWav = IsWavContentType(contentType)
		storedIsMp3 = IsMp3ContentType(contentType)
	}

	allowWav := p.LicenseType != models.LicenseMP3
	if storedIsWav && !allowWav {
		return nil, errdefs.Wrapf(errdefs.ErrLicenseForbidsFormat, "purchase %d license %s", p.ID, p.LicenseType)
	}

	switch format {
	case models.FormatWAV:
		if !storedIsWav {
			return nil, errdefs.Wrapf(errdefs.ErrVariantNotFound, "purchase %d: wav", p.ID)
		}
	case models.FormatMP3:
		if !storedIsMp3 {
			return nil, errdefs.Wrapf(errdefs.ErrVariantNotFound, "purchase %d: mp3", p.ID)
		}
	}

	return &models.ResolvedFile{
		Path:         path,
		Size:         info.Size(),
		ModTime:      info.ModTime(),
		ContentType:  contentType,
		DownloadName: entryName(p.Beat.Title, path, g.types.DetectExtension),
	}, nil
}
