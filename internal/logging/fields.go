package logging

import "log/slog"

func Conversation(id string) slog.Attr {
	return slog.String("chat_id", id)
}

func User(id string) slog.Attr {
	return slog.String("user_id", id)
}

func Message(id string) slog.Attr {
	return slog.String("message_id", id)
}

func State(state string) slog.Attr {
	return slog.String("state", state)
}

func RequestID(id string) slog.Attr {
	return slog.String("request_id", id)
}

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}
