package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	ok := []struct {
		header     string
		start, end int64
	}{
		{"bytes=100-199", 100, 199},
		{"bytes=0-", 0, 999},
		{"bytes=900-5000", 900, 999},
		{"bytes=999-999", 999, 999},
		{"bytes=-100", 900, 999},
		{"bytes=-5000", 0, 999},
		{" bytes=0-0 ", 0, 0},
		{"bytes=0-99999999999999999999", 0, 999},
		{"bytes=500-99999999999999999999", 500, 999},
		{"bytes=-99999999999999999999", 0, 999},
	}
	for _, tc := range ok {
		t.Run(tc.header, func(t *testing.T) {
			br, err := parseRange(tc.header, 1000)
			require.NoError(t, err)
			assert.Equal(t, byteRange{start: tc.start, end: tc.end}, br)
			assert.Equal(t, tc.end-tc.start+1, br.length())
		})
	}

	bad := []string{
		"bytes=5000-6000",
		"bytes=1000-",
		"bytes=200-100",
		"bytes=-0",
		"bytes=-",
		"bytes=0-10,20-30",
		"items=0-10",
		"bytes=a-b",
		"bytes=99999999999999999999-",
	}
	for _, header := range bad {
		t.Run(header, func(t *testing.T) {
			_, err := parseRange(header, 1000)
			assert.True(t, errdefs.Is(err, errdefs.ErrRangeNotSatisfiable))
		})
	}

	t.Run("empty file", func(t *testing.T) {
		_, err := parseRange("bytes=0-", 0)
		assert.Error(t, err)
		_, err = parseRange("bytes=-10", 0)
		assert.Error(t, err)
	})
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="Night Drive.mp3"`, ContentDisposition(DispositionAttachment, "Night Drive.mp3"))
	assert.Equal(t, `inline; filename="track.wav"`, ContentDisposition(DispositionInline, "track.wav"))
	assert.Equal(t, `attachment; filename="x.zip"`, ContentDisposition("bogus", "x.zip"))
	assert.Equal(t, "attachment", ContentDisposition(DispositionAttachment, ""))

	assert.Equal(t,
		`attachment; filename="Cafe Noir.mp3"; filename*=UTF-8''Caf%C3%A9%20Noir.mp3`,
		ContentDisposition(DispositionAttachment, "Café Noir.mp3"))
	assert.Equal(t,
		`inline; filename="___.wav"; filename*=UTF-8''%D0%91%D0%B8%D1%82.wav`,
		ContentDisposition(DispositionInline, "Бит.wav"))
	assert.Equal(t,
		`attachment; filename="say _hi_.mp3"; filename*=UTF-8''say%20%22hi%22.mp3`,
		ContentDisposition(DispositionAttachment, `say "hi".mp3`))
}

func TestServeReleasesStalledClient(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	// Больше любых сокетных буферов, чтобы запись заблокировалась
	require.NoError(t, f.Truncate(64<<20))
	require.NoError(t, f.Close())

	file := &models.ResolvedFile{Path: path, ContentType: "audio/wav", DownloadName: "big.wav"}
	streamer := NewRangeStreamer(32*1024, 200*time.Millisecond)

	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(done)
		assert.NoError(t, streamer.Serve(w, r, file, DispositionAttachment))
	}))
	defer srv.Close()

	conn, err := net.Dial("tcp", srv.Listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = fmt.Fprint(conn, "GET /big.wav HTTP/1.1\r\nHost: media.test\r\n\r\n")
	require.NoError(t, err)
	status, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", status)

	// Дальше клиент ничего не читает
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("handler is still writing to a client that stopped reading")
	}
}

func TestDeadlineWriterWithoutConnection(t *testing.T) {
	rec := httptest.NewRecorder()
	dw := newDeadlineWriter(&statusRecorder{ResponseWriter: rec}, time.Second)

	n, err := dw.Write([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.False(t, dw.enabled)
	dw.finish(true)
	assert.Equal(t, "payload", rec.Body.String())
}
