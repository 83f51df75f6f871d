package models

import (
	"fmt"
	"strings"
	"time"
)

// LicenseType уровень лицензии покупки
type LicenseType string

const (
	LicenseNone      LicenseType = ""
	LicenseMP3       LicenseType = "MP3"
	LicenseWAV       LicenseType = "WAV"
	LicensePremium   LicenseType = "PREMIUM"
	LicenseExclusive LicenseType = "EXCLUSIVE"
)

// ParseLicenseType разбирает уровень лицензии из строки каталога
func ParseLicenseType(s string) (LicenseType, error) {
	switch LicenseType(strings.ToUpper(strings.TrimSpace(s))) {
	case LicenseNone:
		return LicenseNone, nil
	case LicenseMP3:
		return LicenseMP3, nil
	case LicenseWAV:
		return LicenseWAV, nil
	case LicensePremium:
		return LicensePremium, nil
	case LicenseExclusive:
		return LicenseExclusive, nil
	default:
		return LicenseNone, fmt.Errorf("unknown license type %q", s)
	}
}

// TargetKind тип купленного товара
type TargetKind string

const (
	TargetBeat TargetKind = "beat"
	TargetPack TargetKind = "pack"
	TargetKit  TargetKind = "kit"
)

// AssetKind тип элемента кита. Выбирается каталогом до того, как запись попадает сюда.
type AssetKind string

const (
	AssetBeat   AssetKind = "beat"
	AssetSample AssetKind = "sample"
	AssetItem   AssetKind = "item"
)

// Asset элемент кита с ключом хранилища и отображаемым названием
type Asset struct {
	Kind       AssetKind `json:"kind"`
	StorageKey string    `json:"storage_key"`
	Title      string    `json:"title"`
}

// Beat бит из каталога
type Beat struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	AudioPath string `json:"audio_path"` // ссылка на мастер-файл в том виде, как она хранится в каталоге
}

// Pack набор битов
type Pack struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Beats []Beat `json:"beats"`
}

// Kit набор сэмплов
type Kit struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Assets []Asset `json:"assets"`
}

// Purchase запись о покупке (только чтение)
type Purchase struct {
	ID          int64       `json:"id"`
	BuyerEmail  string      `json:"buyer_email"`
	LicenseType LicenseType `json:"license_type,omitempty"`
	LicensePath string      `json:"license_path,omitempty"`
	StemsPath   string      `json:"stems_path,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`

	Beat *Beat `json:"beat,omitempty"`
	Pack *Pack `json:"pack,omitempty"`
	Kit  *Kit  `json:"kit,omitempty"`
}

// Validate проверяет, что у покупки ровно одна цель
func (p *Purchase) Validate() error {
	n := 0
	if p.Beat != nil {
		n++
	}
	if p.Pack != nil {
		n++
	}
	if p.Kit != nil {
		n++
	}
	if n != 1 {
		return fmt.Errorf("purchase %d has %d targets, expected exactly one", p.ID, n)
	}
	return nil
}

// Kind возвращает тип цели покупки
func (p *Purchase) Kind() TargetKind {
	switch {
	case p.Beat != nil:
		return TargetBeat
	case p.Pack != nil:
		return TargetPack
	case p.Kit != nil:
		return TargetKit
	default:
		return ""
	}
}

// TargetTitle название купленного товара
func (p *Purchase) TargetTitle() string {
	switch {
	case p.Beat != nil:
		return p.Beat.Title
	case p.Pack != nil:
		return p.Pack.Title
	case p.Kit != nil:
		return p.Kit.Title
	default:
		return ""
	}
}
