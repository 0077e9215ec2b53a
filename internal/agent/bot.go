package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"simulacra-server/internal/domain"
	"simulacra-server/pkg/api"
	"simulacra-server/pkg/logger"
)

// Сколько ждем запись в сокет, прежде чем счесть соединение мертвым
const writeWait = 10 * time.Second

// Bot - "игрок-компьютер" (headless-клиент). Подключается к серверу по
// WebSocket ровно так же, как человеческий клиент: join, затем команды.
// Решений он не принимает - гоняет заранее заданный сценарий инструкций
// по таймеру, а мышление за его персонажа делает серверный оракул.
// Сервер не отличает бота от человека, поэтому он удобен для демо-миров
// и дымовых прогонов против живого сервера.
//
// Жизненный цикл:
//  1. Dial -> соединение с сервером, отправка join.
//  2. Run -> горутина чтения логирует входящие события,
//     а цикл тикера отправляет следующую инструкцию сценария.
//  3. Завершение - по исчерпанию сценария, отмене контекста или обрыву сети.
type Bot struct {
	ActorID string
	WorldID string

	conn *websocket.Conn
	log  *logrus.Entry
}

// Dial подключается к серверу и входит в мир. serverURL указывает на
// websocket-эндпоинт целиком, например ws://localhost:8080/ws.
func Dial(ctx context.Context, serverURL, actorID, worldID, name string) (*Bot, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, serverURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", serverURL, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", serverURL, err)
	}

	b := &Bot{
		ActorID: actorID,
		WorldID: worldID,
		conn:    conn,
		log:     logger.WithComponent("bot").WithField("actor_id", actorID),
	}

	join := api.JoinPayload{ActorID: actorID, WorldID: worldID, Name: name}
	if err := b.send(api.ClientTypeJoin, join); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join: %w", err)
	}
	b.log.WithField("world_id", worldID).Info("Bot joined world")
	return b, nil
}

// Run отправляет сценарий по одной инструкции за тик и возвращается, когда
// сценарий исчерпан, контекст отменен или сервер закрыл соединение.
// Входящие события при этом читаются и логируются параллельно.
func (b *Bot) Run(ctx context.Context, script []string, every time.Duration) error {
	defer b.conn.Close()

	// Горутина чтения. Сигнал в readDone означает конец соединения.
	readDone := make(chan error, 1)
	go func() {
		readDone <- b.readLoop()
	}()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	next := 0
	for {
		select {
		case <-ctx.Done():
			// Вежливое закрытие, чтобы сервер не ждал таймаута чтения
			deadline := time.Now().Add(writeWait)
			_ = b.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return ctx.Err()
		case err := <-readDone:
			return err
		case <-ticker.C:
			if next >= len(script) {
				b.log.Info("Script finished")
				return nil
			}
			text := script[next]
			next++
			if err := b.sendCommand(text); err != nil {
				return fmt.Errorf("command %d: %w", next, err)
			}
		}
	}
}

// readLoop разбирает входящий поток и подсвечивает в логах то, что
// касается самого бота. На ping сервера отвечает дефолтный обработчик
// gorilla, отдельного кода не нужно.
func (b *Bot) readLoop() error {
	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}

		var msg api.ServerMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			b.log.WithError(err).Warn("Bad server message")
			continue
		}

		switch msg.Type {
		case api.ServerTypeFullState:
			if msg.State != nil {
				b.log.WithFields(logrus.Fields{
					"world_id": msg.State.WorldID,
					"entities": len(msg.State.Entities),
					"events":   len(msg.State.RecentEvents),
				}).Info("World snapshot received")
			}
		case api.ServerTypeEvent:
			b.logEvent(msg.Event)
		case api.ServerTypeError:
			if msg.Error != nil {
				b.log.WithField("code", msg.Error.Code).Warnf("Server error: %s", msg.Error.Message)
			}
		}
	}
}

// logEvent декодирует доменное событие и выводит его глазами бота
func (b *Bot) logEvent(raw json.RawMessage) {
	var ev domain.GameEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		b.log.WithError(err).Debug("Undecodable event")
		return
	}

	entry := b.log.WithField("event", ev.Kind.String()).WithField("actor", ev.ActorID)
	switch p := ev.Params.(type) {
	case domain.HeardParams:
		if ev.ActorID == b.ActorID {
			entry.Infof("Heard %s say: %s", p.SpeakerID, p.Message)
		}
	case domain.CharacterErrorParams:
		if ev.ActorID == b.ActorID {
			entry.Warnf("Character error: %s", p.Message)
		}
	default:
		entry.Debug("Event observed")
	}
}

// sendCommand отправляет инструкцию от имени персонажа бота
func (b *Bot) sendCommand(text string) error {
	b.log.Infof("Command: %s", text)
	return b.send(api.ClientTypeCommand, api.CommandPayload{
		ActorID: b.ActorID,
		WorldID: b.WorldID,
		Text:    text,
		Source:  domain.CommandSourceAgent,
	})
}

// send упаковывает полезную нагрузку в конверт протокола и пишет в сокет.
// Писатель здесь один (цикл Run), поэтому гонок за соединение нет.
func (b *Bot) send(msgType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := api.ClientMessage{Type: msgType, Payload: raw}

	if err := b.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return b.conn.WriteJSON(msg)
}
