package auth

import (
	"context"
	"strings"

	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/interfaces"
	"beatstore-media-service/internal/models"
)

type ctxKey struct{}

// Identity пользователь из проверенного токена
type Identity struct {
	UserID string
	Email  string
	Role   string
	admin  bool
}

var _ interfaces.Identity = (*Identity)(nil)

func (i *Identity) GetEmail() string {
	return i.Email
}

func (i *Identity) IsAdmin() bool {
	return i.admin
}

// CtxWithIdentity кладет личность пользователя в контекст
func CtxWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// GetIdentityFromContext извлекает личность пользователя из контекста
func GetIdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// CanAccessPurchase - доступ к покупке есть у покупателя и у администратора
func CanAccessPurchase(who interfaces.Identity, p *models.Purchase) error {
	if who == nil {
		return errdefs.ErrUnauthorized
	}
	if who.IsAdmin() {
		return nil
	}
	email := strings.TrimSpace(who.GetEmail())
	if email != "" && strings.EqualFold(email, strings.TrimSpace(p.BuyerEmail)) {
		return nil
	}
	return errdefs.ErrNotPurchaseOwner
}
