package interfaces

import (
	"context"

	"beatstore-media-service/internal/models"
)

// PurchaseRepository источник записей о покупках (только чтение).
// Отсутствующая покупка - errdefs.ErrPurchaseNotFound.
type PurchaseRepository interface {
	GetPurchase(ctx context.Context, id int64) (*models.Purchase, error)
	Close() error
}
