package service

import (
	"testing"

	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]models.Format{"": models.FormatAuto, "AUTO": models.FormatAuto, " mp3 ": models.FormatMP3, "Wav": models.FormatWAV} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseFormat("flac")
	assert.True(t, errdefs.Is(err, errdefs.ErrInvalidFormat))
	assert.Equal(t, 400, errdefs.HTTPStatus(err))
}

func TestRequiresStems(t *testing.T) {
	for license, want := range map[models.LicenseType]bool{
		models.LicenseNone:      false,
		models.LicenseMP3:       false,
		models.LicenseWAV:       false,
		models.LicensePremium:   true,
		models.LicenseExclusive: true,
	} {
		assert.Equal(t, want, RequiresStems(&models.Purchase{LicenseType: license}), license)
	}
}

func TestDeliverablesFor(t *testing.T) {
	t.Run("beat without stems license", func(t *testing.T) {
		p := beatPurchase(1, models.LicenseWAV, "https://cdn.example.com/uploads/beats/a.wav")
		p.StemsPath = "stems/1"
		set := DeliverablesFor(p)
		assert.Equal(t, models.TargetBeat, set.Kind)
		assert.Equal(t, []models.StorageKey{"beats/a.wav"}, set.Keys())
		assert.Empty(t, set.StemsRef)
	})

	t.Run("pack skips empty refs", func(t *testing.T) {
		p := &models.Purchase{ID: 2, LicenseType: models.LicensePremium, StemsPath: "stems/2", Pack: &models.Pack{
			Title: "Pack",
			Beats: []models.Beat{{Title: "One", AudioPath: "/uploads/beats/1.mp3"}, {Title: "Blank", AudioPath: " "}, {Title: "Two", AudioPath: "beats/2.mp3"}},
		}}
		set := DeliverablesFor(p)
		assert.Equal(t, []models.StorageKey{"beats/1.mp3", "beats/2.mp3"}, set.Keys())
		assert.Equal(t, "stems/2", set.StemsRef)
	})

	t.Run("kit", func(t *testing.T) {
		p := &models.Purchase{ID: 3, Kit: &models.Kit{Title: "Drums", Assets: []models.Asset{
			{Kind: models.AssetSample, StorageKey: "kits/k/snare.wav"},
			{Kind: models.AssetItem, StorageKey: "kits\\k\\kick.wav"},
		}}}
		assert.Equal(t, []models.StorageKey{"kits/k/snare.wav", "kits/k/kick.wav"}, DeliverablesFor(p).Keys())
	})
}

func TestAuthorizeBundleMember(t *testing.T) {
	allowed := []models.StorageKey{"kits/k1/snare.wav", "kits/k1/kick.wav"}

	assert.True(t, AuthorizeBundleMember("kits/k1/snare.wav", allowed))
	assert.True(t, AuthorizeBundleMember("https://cdn.example.com/uploads/kits/k1/kick.wav", allowed))
	assert.True(t, AuthorizeBundleMember("/uploads/kits/k1/snare.wav", allowed))
	assert.False(t, AuthorizeBundleMember("kits/k2/snare.wav", allowed))
	assert.False(t, AuthorizeBundleMember("kits/k1/../k1/snare.wav", allowed))
	assert.False(t, AuthorizeBundleMember("KITS/k1/snare.wav", allowed))
	assert.False(t, AuthorizeBundleMember("", allowed))
}

func TestAuthorizeSingleFile(t *testing.T) {
	f := newFixture(t)
	gate := NewEntitlementGate(f.storage, f.types)
	f.write(t, "beats/master.wav", wavHeader, 4096)
	f.write(t, "beats/preview.mp3", mp3Header, 4096)
	f.write(t, "beats/untyped", mp3Header, 4096)

	t.Run("mp3 license blocks wav master", func(t *testing.T) {
		_, err := gate.AuthorizeSingleFile(beatPurchase(1, models.LicenseMP3, "beats/master.wav"), models.FormatAuto)
		require.Error(t, err)
		assert.True(t, errdefs.Is(err, errdefs.ErrLicenseForbidsFormat))
		assert.Equal(t, 403, errdefs.HTTPStatus(err))
	})

	t.Run("mp3 license gets mp3 master", func(t *testing.T) {
		file, err := gate.AuthorizeSingleFile(beatPurchase(1, models.LicenseMP3, "/uploads/beats/preview.mp3"), models.FormatAuto)
		require.NoError(t, err)
		assert.Equal(t, "audio/mpeg", file.ContentType)
		assert.Equal(t, "Night Drive.mp3", file.DownloadName)
		assert.EqualValues(t, 4096, file.Size)
	})

	t.Run("wav license gets wav master", func(t *testing.T) {
		file, err := gate.AuthorizeSingleFile(beatPurchase(2, models.LicenseWAV, "beats/master.wav"), models.FormatWAV)
		require.NoError(t, err)
		assert.True(t, IsWavContentType(file.ContentType))
		assert.Equal(t, "Night Drive.wav", file.DownloadName)
	})

	t.Run("requested variant not stored", func(t *testing.T) {
		_, err := gate.AuthorizeSingleFile(beatPurchase(2, models.LicenseWAV, "beats/master.wav"), models.FormatMP3)
		assert.True(t, errdefs.Is(err, errdefs.ErrVariantNotFound))
		assert.Equal(t, 404, errdefs.HTTPStatus(err))

		_, err = gate.AuthorizeSingleFile(beatPurchase(2, models.LicenseWAV, "beats/preview.mp3"), models.FormatWAV)
		assert.True(t, errdefs.Is(err, errdefs.ErrVariantNotFound))
	})

	t.Run("extension detected from content", func(t *testing.T) {
		file, err := gate.AuthorizeSingleFile(beatPurchase(3, models.LicenseMP3, "beats/untyped"), models.FormatMP3)
		require.NoError(t, err)
		assert.Equal(t, "Night Drive.mp3", file.DownloadName)
	})

	t.Run("missing master", func(t *testing.T) {
		_, err := gate.AuthorizeSingleFile(beatPurchase(4, models.LicenseWAV, "beats/gone.wav"), models.FormatAuto)
		assert.Equal(t, 404, errdefs.HTTPStatus(err))
	})

	t.Run("escape attempt", func(t *testing.T) {
		_, err := gate.AuthorizeSingleFile(beatPurchase(5, models.LicenseWAV, "../../etc/passwd"), models.FormatAuto)
		assert.Equal(t, 404, errdefs.HTTPStatus(err))
	})

	t.Run("not a beat purchase", func(t *testing.T) {
		_, err := gate.AuthorizeSingleFile(&models.Purchase{ID: 6, Kit: &models.Kit{}}, models.FormatAuto)
		assert.True(t, errdefs.Is(err, errdefs.ErrPurchaseTypeMismatch))
	})
}
