package interfaces

import (
	"context"
	"io"

	"beatstore-media-service/internal/models"
)

// Identity аутентифицированный пользователь запроса
type Identity interface {
	GetEmail() string
	IsAdmin() bool
}

// DeliveryService выдача купленных файлов
type DeliveryService interface {
	// Загрузка покупки с проверкой владельца и типа цели
	LoadPurchase(ctx context.Context, purchaseID int64, who Identity, kind models.TargetKind) (*models.Purchase, error)

	// Один файл бита: скачивание и стриминг
	ResolveBeatFile(ctx context.Context, purchase *models.Purchase, format models.Format) (*models.ResolvedFile, error)
	WantsArchive(ctx context.Context, purchase *models.Purchase) bool

	// Треки пака или кита
	ListTracks(ctx context.Context, purchase *models.Purchase) ([]models.TrackInfo, error)
	ResolveBundleMember(ctx context.Context, purchase *models.Purchase, key string) (*models.ResolvedFile, error)

	// Архив
	ArchiveName(purchase *models.Purchase) string
	WriteArchive(ctx context.Context, purchase *models.Purchase, out io.Writer) error

	// Статус стемов для уведомлений
	StemsStatus(ctx context.Context, purchaseID int64) (*models.StemsStatus, error)
}
