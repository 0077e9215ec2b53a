package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// GenerateConnID создает короткий непрозрачный ID для websocket-соединения.
// Доменные идентификаторы (события, предметы) живут в internal/domain,
// здесь только транспортный мусорный ID, которому не нужна сортируемость.
func GenerateConnID() string {
	b := make([]byte, 8) // 16 символов hex
	if _, err := rand.Read(b); err != nil {
		panic("failed to generate random ID: " + err.Error())
	}
	return hex.EncodeToString(b)
}

