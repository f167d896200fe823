package sl

import (
	"golang.org/x/exp/slog"
)

func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

func Room(id string) slog.Attr {
	return slog.Attr{
		Key:   "room_id",
		Value: slog.StringValue(id),
	}
}

func Round(id string) slog.Attr {
	return slog.Attr{
		Key:   "round_id",
		Value: slog.StringValue(id),
	}
}

func Player(id string) slog.Attr {
	return slog.Attr{
		Key:   "player_id",
		Value: slog.StringValue(id),
	}
}
