package network

import (
	"sync"

	"simulacra-server/pkg/api"
)

// Hub ведет подписчиков-зрителей и раскладывает рассылку по мирам.
// Hub ничего не знает ни о websocket, ни о движке: соединение
// регистрируется, получает буферизованный канал и читает из него.
type Hub struct {
	mu sync.RWMutex
	// connID -> подписка
	subscribers map[string]*subscriber

	sendBuffer int
}

type subscriber struct {
	worldID string
	ch      chan api.ServerMessage
}

func NewHub(sendBuffer int) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 100
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		sendBuffer:  sendBuffer,
	}
}

// Register подписывает соединение на мир и возвращает его личный канал.
// Повторная регистрация того же connID закрывает старый канал.
func (h *Hub) Register(connID, worldID string) <-chan api.ServerMessage {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.subscribers[connID]; ok {
		close(old.ch)
	}

	sub := &subscriber{
		worldID: worldID,
		ch:      make(chan api.ServerMessage, h.sendBuffer),
	}
	h.subscribers[connID] = sub
	return sub.ch
}

// Unregister снимает подписку и закрывает канал соединения
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.subscribers[connID]; ok {
		close(sub.ch)
		delete(h.subscribers, connID)
	}
}

// Broadcast отправляет сообщение всем зрителям мира.
// Переполненный канал медленного клиента теряет сообщение, не блокируя
// ни движок, ни остальных зрителей.
func (h *Hub) Broadcast(worldID string, msg api.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		if sub.worldID != worldID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// SendTo отправляет сообщение конкретному соединению (unicast)
func (h *Hub) SendTo(connID string, msg api.ServerMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if sub, ok := h.subscribers[connID]; ok {
		select {
		case sub.ch <- msg:
		default:
		}
	}
}

// SubscriberCount возвращает число зрителей мира
func (h *Hub) SubscriberCount(worldID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, sub := range h.subscribers {
		if sub.worldID == worldID {
			n++
		}
	}
	return n
}
