package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"beatstore-media-service/config"
	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/models"
	"beatstore-media-service/internal/repository"

	"github.com/stretchr/testify/require"
)

var (
	wavHeader = []byte("RIFF\x24\x00\x00\x00WAVEfmt \x10\x00\x00\x00\x01\x00\x02\x00")
	mp3Header = []byte("ID3\x03\x00\x00\x00\x00\x00\x00")
)

// MockPurchaseRepository каталог покупок в памяти
type MockPurchaseRepository struct {
	purchases map[int64]*models.Purchase
}

func NewMockPurchaseRepository(purchases ...*models.Purchase) *MockPurchaseRepository {
	m := &MockPurchaseRepository{purchases: make(map[int64]*models.Purchase)}
	for _, p := range purchases {
		m.purchases[p.ID] = p
	}
	return m
}

func (m *MockPurchaseRepository) GetPurchase(ctx context.Context, id int64) (*models.Purchase, error) {
	if p, ok := m.purchases[id]; ok {
		return p, nil
	}
	return nil, errdefs.ErrPurchaseNotFound
}

func (m *MockPurchaseRepository) Close() error {
	return nil
}

type testIdentity struct {
	email string
	admin bool
}

func (i testIdentity) GetEmail() string { return i.email }
func (i testIdentity) IsAdmin() bool    { return i.admin }

type fixture struct {
	root    string
	storage *repository.StorageRepository
	types   *ContentTypeResolver
	cfg     *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	storage, err := repository.NewStorageRepositoryAt(root)
	require.NoError(t, err)
	types, err := NewContentTypeResolver(16)
	require.NoError(t, err)

	cfg := &config.Config{
		Storage: config.StorageConfig{
			Root:           root,
			CopyBufferSize: 1024,
			StemsMinSize:   config.DefaultStemsMinSize,
			MimeCacheSize:  16,
		},
		PublicBaseURL: "https://media.example.com/",
	}
	return &fixture{root: root, storage: storage, types: types, cfg: cfg}
}

// write создает файл внутри корня: header и дальше нули до size байт
func (f *fixture) write(t *testing.T, rel string, header []byte, size int) string {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	data := make([]byte, size)
	copy(data, header)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func beatPurchase(id int64, license models.LicenseType, audio string) *models.Purchase {
	return &models.Purchase{
		ID:          id,
		BuyerEmail:  "buyer@example.com",
		LicenseType: license,
		Beat:        &models.Beat{ID: id * 10, Title: "Night Drive", AudioPath: audio},
	}
}
