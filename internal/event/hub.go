package event

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go-grandwager/internal/lib/logger/sl"
	"golang.org/x/exp/slog"
)

type Message struct {
	Channel string                 `json:"channel"`
	Event   string                 `json:"event"`
	Data    map[string]interface{} `json:"data"`
}

// HubSink broadcasts events to websocket connections subscribed per
// channel. It keeps the engine unaware of individual sockets.
type HubSink struct {
	channels map[string]map[*websocket.Conn]bool
	mutex    sync.RWMutex
	log      *slog.Logger
}

func NewHubSink(log *slog.Logger) *HubSink {
	return &HubSink{
		channels: make(map[string]map[*websocket.Conn]bool),
		log:      log,
	}
}

func (hub *HubSink) Subscribe(channel string, conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if hub.channels[channel] == nil {
		hub.channels[channel] = make(map[*websocket.Conn]bool)
	}
	hub.channels[channel][conn] = true
}

func (hub *HubSink) Unsubscribe(channel string, conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	if receivers, ok := hub.channels[channel]; ok {
		delete(receivers, conn)
		if len(receivers) == 0 {
			delete(hub.channels, channel)
		}
	}
}

func (hub *HubSink) Emit(channel string, event string, data map[string]interface{}) error {
	const op = "event.hub.Emit"

	msg, err := json.Marshal(Message{
		Channel: channel,
		Event:   event,
		Data:    data,
	})
	if err != nil {
		hub.log.Error("failed to marshal message", sl.Err(err))

		return err
	}

	hub.mutex.RLock()
	receivers := make([]*websocket.Conn, 0, len(hub.channels[channel]))
	for conn := range hub.channels[channel] {
		receivers = append(receivers, conn)
	}
	hub.mutex.RUnlock()

	for _, conn := range receivers {
		if err = conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			hub.log.Error("failed to write to subscriber",
				slog.String("op", op), slog.String("channel", channel), sl.Err(err))
			hub.Unsubscribe(channel, conn)
		}
	}

	return nil
}
