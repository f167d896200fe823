package event

import (
	"github.com/pusher/pusher-http-go/v5"
	"go-grandwager/internal/lib/logger/sl"
	"golang.org/x/exp/slog"
)

type PusherSink struct {
	log    *slog.Logger
	pusher *pusher.Client
}

func NewPusherSink(log *slog.Logger, pusherClient *pusher.Client) *PusherSink {
	return &PusherSink{
		log:    log,
		pusher: pusherClient,
	}
}

func (p *PusherSink) Emit(channel string, event string, data map[string]interface{}) error {
	if err := p.pusher.Trigger(channel, event, data); err != nil {
		p.log.Error("failed to trigger pusher event",
			slog.String("channel", channel), slog.String("event", event), sl.Err(err))
		return err
	}
	return nil
}
