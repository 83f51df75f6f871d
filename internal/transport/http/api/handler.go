package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"beatstore-media-service/internal/auth"
	"beatstore-media-service/internal/errdefs"
	"beatstore-media-service/internal/interfaces"
	"beatstore-media-service/internal/logger"
	"beatstore-media-service/internal/models"
	"beatstore-media-service/internal/service"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Handler struct {
	deliveryService   interfaces.DeliveryService
	streamer          *RangeStreamer
	chunkWriteTimeout time.Duration
}

func NewHandler(deliveryService interfaces.DeliveryService, copyBufferSize int, chunkWriteTimeout time.Duration) *Handler {
	return &Handler{
		deliveryService:   deliveryService,
		streamer:          NewRangeStreamer(copyBufferSize, chunkWriteTimeout),
		chunkWriteTimeout: chunkWriteTimeout,
	}
}

// SetupRoutes настраивает маршруты API
func SetupRoutes(handler *Handler, log *logger.Logger, validator *auth.TokenValidator) http.Handler {
	router := mux.NewRouter()

	// Сначала добавляем logger в контекст, затем проверяем аутентификацию
	router.Use(LoggerMiddleware(log))

	// Health check endpoint (без аутентификации)
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	router.HandleFunc("/api/v1/health", handler.HealthCheck).Methods("GET")

	purchases := router.PathPrefix("/api/v1/purchases").Subrouter()
	purchases.Use(auth.AuthMiddleware(validator))

	purchases.HandleFunc("/beats/{purchaseId:[0-9]+}/download", handler.DownloadBeat).Methods("GET", "HEAD")
	purchases.HandleFunc("/beats/{purchaseId:[0-9]+}/stream", handler.StreamBeat).Methods("GET", "HEAD")

	purchases.HandleFunc("/{kind:packs|kits}/{purchaseId:[0-9]+}/download", handler.DownloadBundle).Methods("GET", "HEAD")
	purchases.HandleFunc("/{kind:packs|kits}/{purchaseId:[0-9]+}/tracks", handler.ListTracks).Methods("GET")
	purchases.HandleFunc("/{kind:packs|kits}/{purchaseId:[0-9]+}/stream", handler.StreamBundleMember).Methods("GET", "HEAD")

	// --- CORS middleware ---
	corsMiddleware := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "HEAD", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "Range", requestIDHeader}),
		handlers.ExposedHeaders([]string{"Content-Type", "Content-Length", "Accept-Ranges", "Content-Range", "Content-Disposition", requestIDHeader}),
	)
	return corsMiddleware(router)
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondWithError(w http.ResponseWriter, statusCode int, message string) {
	h.respondWithJSON(w, statusCode, map[string]string{"error": message})
}

// respondWithDomainError переводит доменную ошибку в статус и безопасный текст.
// Внутренние пути остаются только в логе.
func (h *Handler) respondWithDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := errdefs.HTTPStatus(err)
	lg := logger.GetLoggerFromCtxSafe(r.Context())
	if status >= http.StatusInternalServerError {
		lg.Error(r.Context(), "Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		lg.Warn(r.Context(), "Request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	h.respondWithError(w, status, errdefs.PublicMessage(err))
}

func (h *Handler) parsePurchaseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["purchaseId"], 10, 64)
	if err != nil || id <= 0 {
		return 0, errdefs.Wrap(errdefs.ErrInvalidInput, "invalid purchase id")
	}
	return id, nil
}

func bundleKind(r *http.Request) models.TargetKind {
	if mux.Vars(r)["kind"] == "kits" {
		return models.TargetKit
	}
	return models.TargetPack
}

// loadPurchase общая часть всех обработчиков: id из пути, пользователь из контекста, проверка доступа
func (h *Handler) loadPurchase(w http.ResponseWriter, r *http.Request, kind models.TargetKind) (*models.Purchase, bool) {
	purchaseID, err := h.parsePurchaseID(r)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return nil, false
	}

	var who interfaces.Identity
	if id, ok := auth.GetIdentityFromContext(r.Context()); ok {
		who = id
	}

	p, err := h.deliveryService.LoadPurchase(r.Context(), purchaseID, who, kind)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return nil, false
	}
	return p, true
}

// DownloadBeat отдает мастер-файл бита или архив с лицензией и стемами
func (h *Handler) DownloadBeat(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPurchase(w, r, models.TargetBeat)
	if !ok {
		return
	}

	format, err := service.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}

	// Явно запрошенный формат всегда отдается одним файлом.
	// HEAD получает те же заголовки, что и GET
	if format == models.FormatAuto && h.deliveryService.WantsArchive(r.Context(), p) {
		h.writeArchive(w, r, p)
		return
	}

	h.serveBeatFile(w, r, p, format, DispositionAttachment)
}

// StreamBeat отдает мастер-файл бита для плеера с поддержкой Range
func (h *Handler) StreamBeat(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPurchase(w, r, models.TargetBeat)
	if !ok {
		return
	}

	format, err := service.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}

	h.serveBeatFile(w, r, p, format, DispositionInline)
}

func (h *Handler) serveBeatFile(w http.ResponseWriter, r *http.Request, p *models.Purchase, format models.Format, disposition string) {
	file, err := h.deliveryService.ResolveBeatFile(r.Context(), p, format)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	if err := h.streamer.Serve(w, r, file, disposition); err != nil {
		h.respondWithDomainError(w, r, err)
	}
}

// DownloadBundle отдает архив пака или кита
func (h *Handler) DownloadBundle(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPurchase(w, r, bundleKind(r))
	if !ok {
		return
	}
	h.writeArchive(w, r, p)
}

// ListTracks список треков пака или кита со ссылками на стриминг
func (h *Handler) ListTracks(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPurchase(w, r, bundleKind(r))
	if !ok {
		return
	}

	tracks, err := h.deliveryService.ListTracks(r.Context(), p)
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, tracks)
}

// StreamBundleMember отдает один файл пака или кита по ключу
func (h *Handler) StreamBundleMember(w http.ResponseWriter, r *http.Request) {
	p, ok := h.loadPurchase(w, r, bundleKind(r))
	if !ok {
		return
	}

	file, err := h.deliveryService.ResolveBundleMember(r.Context(), p, r.URL.Query().Get("key"))
	if err != nil {
		h.respondWithDomainError(w, r, err)
		return
	}
	if err := h.streamer.Serve(w, r, file, DispositionInline); err != nil {
		h.respondWithDomainError(w, r, err)
	}
}

// writeArchive стримит zip. Размер заранее неизвестен, поэтому Content-Length не ставится.
func (h *Handler) writeArchive(w http.ResponseWriter, r *http.Request, p *models.Purchase) {
	ctx := r.Context()
	lg := logger.GetLoggerFromCtxSafe(ctx)

	header := w.Header()
	header.Set("Content-Type", "application/zip")
	header.Set("Content-Disposition", ContentDisposition(DispositionAttachment, h.deliveryService.ArchiveName(p)))
	header.Set("Access-Control-Expose-Headers", exposedHeaders)
	header.Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	dw := newDeadlineWriter(w, h.chunkWriteTimeout)
	err := h.deliveryService.WriteArchive(ctx, p, dw)
	dw.finish(err == nil)
	if err != nil {
		if service.IsClientGone(err) {
			lg.Info(ctx, "Client went away during archive", zap.Int64("purchaseID", p.ID))
			return
		}
		lg.Error(ctx, "Archive aborted", zap.Int64("purchaseID", p.ID), zap.Error(err))
		// Заголовки уже отправлены: обрываем соединение, чтобы клиент не принял обрезанный zip за целый
		panic(http.ErrAbortHandler)
	}
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
