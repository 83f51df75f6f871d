package models

import "time"

// StorageKey канонический относительный путь файла внутри корня хранилища
type StorageKey string

func (k StorageKey) String() string {
	return string(k)
}

// Deliverable один файл, который покупка может выдать
type Deliverable struct {
	Key   StorageKey
	Ref   string // исходная ссылка из каталога
	Title string
}

// DeliverableSet набор файлов для текущего запроса. Вычисляется заново на каждый запрос.
type DeliverableSet struct {
	PurchaseID int64
	Kind       TargetKind
	Title      string
	Members    []Deliverable
	LicenseRef string
	StemsRef   string // заполнен только если лицензия требует стемы
}

// Keys возвращает ключи всех участников набора
func (s *DeliverableSet) Keys() []StorageKey {
	keys := make([]StorageKey, 0, len(s.Members))
	for _, m := range s.Members {
		keys = append(keys, m.Key)
	}
	return keys
}

// ArchiveMember запись архива: имя внутри zip и путь на диске
type ArchiveMember struct {
	Name string
	Path string
}

// ResolvedFile файл, прошедший проверку прав и разрешенный в абсолютный путь
type ResolvedFile struct {
	Path         string
	Size         int64
	ModTime      time.Time
	ContentType  string
	DownloadName string
}

// TrackInfo элемент списка треков пака или кита
type TrackInfo struct {
	Name      string `json:"name"`
	Key       string `json:"key"`
	StreamURL string `json:"streamUrl"`
	SizeBytes int64  `json:"sizeBytes"`
}

// Format запрошенный вариант аудио
type Format string

const (
	FormatAuto Format = "auto"
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
)

// StemsStatus ответ для уведомлений о завершении покупки
type StemsStatus struct {
	PurchaseID     int64 `json:"purchase_id"`
	RequiresStems  bool  `json:"requires_stems"`
	StemsAvailable bool  `json:"stems_available"`
}
