package archive

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"simulacra-server/internal/domain"
)

// Предел на одну запись: защищает от мусорной длины в битом файле
const maxRecordLen = 16 << 20

// Info - метаданные архива. Лежат в несжатом заголовке,
// поэтому читаются без распаковки тела.
type Info struct {
	WorldID    string
	CreatedAt  time.Time
	Version    uint32
	EventCount int
}

// Archive - загруженный в память архив журнала одного мира
type Archive struct {
	WorldID   string
	CreatedAt time.Time
	Events    []domain.GameEvent
}

// Load читает архив с диска целиком
func (s *Service) Load(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Read(f)
}

// ReadInfo разбирает и валидирует несжатый заголовок архива.
// После возврата reader стоит ровно на начале zstd-потока.
func ReadInfo(r io.Reader) (*Info, error) {
	var header fileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	if string(header.Magic[:]) != MagicHeader {
		return nil, fmt.Errorf("invalid magic")
	}
	if header.Version != Version1 {
		return nil, fmt.Errorf("unsupported version: %d (expected %d)", header.Version, Version1)
	}
	if header.EventCount < 0 {
		return nil, fmt.Errorf("invalid event count: %d", header.EventCount)
	}

	idBytes := make([]byte, header.WorldIDLen)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return nil, fmt.Errorf("failed to read world id: %w", err)
	}

	return &Info{
		WorldID:    string(idBytes),
		CreatedAt:  time.UnixMilli(header.CreatedAt).UTC(),
		Version:    header.Version,
		EventCount: int(header.EventCount),
	}, nil
}

// Read разбирает архив из произвольного reader
func Read(r io.Reader) (*Archive, error) {
	info, err := ReadInfo(r)
	if err != nil {
		return nil, err
	}

	arc := &Archive{
		WorldID:   info.WorldID,
		CreatedAt: info.CreatedAt,
		Events:    make([]domain.GameEvent, info.EventCount),
	}

	// Сжатое тело: длина + JSON на каждое событие
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	for i := 0; i < info.EventCount; i++ {
		var rh recordHeader
		if err := binary.Read(dec, binary.LittleEndian, &rh); err != nil {
			return nil, fmt.Errorf("failed to read record %d header: %w", i, err)
		}
		if rh.PayloadLen > maxRecordLen {
			return nil, fmt.Errorf("record %d is implausibly large: %d bytes", i, rh.PayloadLen)
		}

		payload := make([]byte, rh.PayloadLen)
		if _, err := io.ReadFull(dec, payload); err != nil {
			return nil, fmt.Errorf("failed to read record %d: %w", i, err)
		}
		if err := json.Unmarshal(payload, &arc.Events[i]); err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", i, err)
		}
	}

	return arc, nil
}
