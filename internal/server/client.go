package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"simulacra-server/internal/domain"
	"simulacra-server/pkg/api"
	"simulacra-server/pkg/logger"
	"simulacra-server/pkg/utils"
)

// Настройки WebSocket
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // команды несут свободный текст, 512 байт мало
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client - посредник между WebSocket и ядром. Соединение сначала
// представляется (join), получает полный снимок мира и подписку на его
// события, дальше шлет текстовые команды. Одно соединение - один мир.
type Client struct {
	core ClientCore
	conn *websocket.Conn

	connID  string
	worldID string // пусто до join

	// Личная очередь исходящих. Пишет сюда либо сам клиент (ошибки
	// протокола до join), либо пересылка из хаба после подписки.
	send chan api.ServerMessage

	log *logrus.Entry
}

// ClientCore - то, что клиенту нужно от остального сервера.
// Server реализует этот интерфейс; тестам хватает заглушки.
type ClientCore interface {
	// JoinWorld поднимает мир, заводит в него сущность и возвращает
	// снимок для первой отрисовки
	JoinWorld(ctx context.Context, p api.JoinPayload) (api.WorldStateView, error)

	// Command проводит инструкцию через конвейер резолвера мира
	Command(ctx context.Context, p api.CommandPayload) error

	// Subscribe подписывает соединение на рассылку мира
	Subscribe(connID, worldID string) <-chan api.ServerMessage

	// Unsubscribe снимает подписку (идемпотентно)
	Unsubscribe(connID string)
}

func NewClient(core ClientCore, conn *websocket.Conn) *Client {
	connID := utils.GenerateConnID()
	return &Client{
		core:   core,
		conn:   conn,
		connID: connID,
		send:   make(chan api.ServerMessage, 256),
		log:    logger.WithComponent("ws_client").WithField("conn_id", connID),
	}
}

// readPump читает сообщения клиента до разрыва соединения.
// Исполняется в горутине соединения; по выходу гасит подписку и сокет.
func (c *Client) readPump() {
	joined := false
	defer func() {
		if joined {
			// Unsubscribe закроет канал хаба, пересылка закроет send,
			// writePump попрощается и выйдет
			c.core.Unsubscribe(c.connID)
		} else {
			close(c.send)
		}
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Debug("close after read loop failed")
		}
		c.log.Info("Client disconnected")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.WithError(err).Warn("failed to set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.WithError(err).Warn("failed to set pong read deadline")
		}
		return nil
	})

	for {
		var msg api.ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.WithError(err).Warn("read failed")
			}
			return
		}

		switch msg.Type {
		case api.ClientTypeJoin:
			if c.handleJoin(msg.Payload) {
				joined = true
			}
		case api.ClientTypeCommand:
			c.handleCommand(msg.Payload)
		default:
			c.send <- api.NewErrorMessage(api.ErrCodeUnknownType, "unknown message type "+msg.Type)
		}
	}
}

// handleJoin заводит сущность в мир и подписывает соединение на него.
// Join принимается один раз: у соединения ровно одна пересылка из хаба,
// смена мира - это новое соединение.
func (c *Client) handleJoin(raw json.RawMessage) bool {
	if c.worldID != "" {
		c.send <- api.NewErrorMessage(api.ErrCodeInvalid, "already joined; open a new connection to switch worlds")
		return false
	}

	var p api.JoinPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.send <- api.NewErrorMessage(api.ErrCodeBadJSON, "malformed join payload")
		return false
	}
	if err := p.Validate(); err != nil {
		c.send <- api.NewErrorMessage(api.ErrCodeInvalid, err.Error())
		return false
	}

	view, err := c.core.JoinWorld(context.Background(), p)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"actor_id": p.ActorID,
			"world_id": p.WorldID,
		}).Error("Join failed")
		c.send <- api.NewErrorMessage(api.ErrCodeInternal, "join failed")
		return false
	}

	updates := c.core.Subscribe(c.connID, p.WorldID)
	c.worldID = p.WorldID

	// Пересылка рассылок мира в личную очередь. Живет до Unsubscribe:
	// хаб закрывает канал, пересылка закрывает send.
	go func() {
		for msg := range updates {
			c.send <- msg
		}
		close(c.send)
	}()

	c.send <- api.NewFullStateMessage(view)

	c.log.WithFields(logrus.Fields{
		"actor_id": p.ActorID,
		"world_id": p.WorldID,
	}).Info("Client joined world")
	return true
}

// handleCommand проводит команду через ядро. Команды принимаются только
// для мира, в который соединение вошло: чужой worldId на транспорте -
// ошибка протокола, до движка такое не доходит.
func (c *Client) handleCommand(raw json.RawMessage) {
	var p api.CommandPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		c.send <- api.NewErrorMessage(api.ErrCodeBadJSON, "malformed command payload")
		return
	}
	if err := p.Validate(); err != nil {
		c.send <- api.NewErrorMessage(api.ErrCodeInvalid, err.Error())
		return
	}
	if c.worldID == "" {
		c.send <- api.NewErrorMessage(api.ErrCodeJoinRequired, "join a world before sending commands")
		return
	}
	if p.WorldID != c.worldID {
		c.send <- api.NewErrorMessage(api.ErrCodeInvalid, "command addressed to another world")
		return
	}
	if p.Source == "" {
		p.Source = domain.CommandSourceUser
	}

	// Команда обрабатывается синхронно: пока оракул думает, соединение
	// новых команд не читает. Один актор - одна команда за раз.
	if err := c.core.Command(context.Background(), p); err != nil {
		c.log.WithError(err).WithField("actor_id", p.ActorID).Error("Command pipeline failed")
		c.send <- api.NewErrorMessage(api.ErrCodeInternal, "command failed")
	}
}

// writePump отправляет данные клиенту + Ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.log.WithError(err).Debug("close after write loop failed")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("failed to set write deadline")
			}
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.log.WithError(err).Debug("write close message failed")
				}
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.WithError(err).Debug("write json message failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithError(err).Debug("ping failed")
				return
			}
		}
	}
}
