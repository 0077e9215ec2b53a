package archive

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"simulacra-server/internal/domain"
)

const (
	MagicHeader string = `SIMA` // 4 байта
	Version1    uint32 = 1
)

// fileHeader - точное представление заголовка файла в памяти.
// binary.Write умеет писать это целиком: тут нет слайсов и строк,
// только массивы и числа. Заголовок лежит НЕ сжатым, чтобы info-команды
// читали метаданные без распаковки; сжатие начинается после worldID.
type fileHeader struct {
	Magic      [4]byte // 4 байта
	Version    uint32  // 4 байта
	CreatedAt  int64   // 8 байт, unix ms
	EventCount int32   // 4 байта
	WorldIDLen uint16  // 2 байта
}

// recordHeader - заголовок каждой записи события внутри zstd-потока
type recordHeader struct {
	PayloadLen uint32 // 4 байта
}

// Service пишет и читает архивы журналов событий: один файл - один мир,
// события в JSON, тело сжато zstd. Формат нужен только для офлайн-разбора
// (tools/evlog); сервер архивы не перечитывает.
type Service struct {
	Dir string
}

func NewService(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Service{Dir: dir}, nil
}

// Save складывает журнал мира в новый файл и возвращает его путь
func (s *Service) Save(worldID string, events []domain.GameEvent) (string, error) {
	now := time.Now().UTC()
	filename := fmt.Sprintf("events_%s_%d.sima", sanitize(worldID), now.Unix())
	path := filepath.Join(s.Dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	if err := Write(f, worldID, now, events); err != nil {
		_ = f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}

// Write сериализует архив в произвольный writer
func Write(w io.Writer, worldID string, createdAt time.Time, events []domain.GameEvent) error {
	idBytes := []byte(worldID)
	if len(idBytes) > 65535 {
		return fmt.Errorf("world id too long: %d", len(idBytes))
	}

	// 1. Несжатый заголовок + worldID
	header := fileHeader{
		Version:    Version1,
		CreatedAt:  createdAt.UnixMilli(),
		EventCount: int32(len(events)),
		WorldIDLen: uint16(len(idBytes)),
	}
	copy(header.Magic[:], MagicHeader)

	if err := binary.Write(w, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if _, err := w.Write(idBytes); err != nil {
		return err
	}

	// 2. Сжатое тело: длина + JSON на каждое событие
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return err
	}

	for i := range events {
		payload, err := json.Marshal(&events[i])
		if err != nil {
			_ = enc.Close()
			return fmt.Errorf("failed to encode event %s: %w", events[i].ID, err)
		}
		rh := recordHeader{PayloadLen: uint32(len(payload))}
		if err := binary.Write(enc, binary.LittleEndian, &rh); err != nil {
			_ = enc.Close()
			return err
		}
		if _, err := enc.Write(payload); err != nil {
			_ = enc.Close()
			return err
		}
	}

	return enc.Close()
}

// sanitize оставляет от worldID безопасное для имени файла подмножество
func sanitize(worldID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, worldID)
}
