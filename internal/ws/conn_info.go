package ws

import "time"

// ConnInfo describes the current socket session.
type ConnInfo struct {
	ConnID      string    `json:"conn_id"`
	UserID      string    `json:"user_id"`
	Attempt     int       `json:"attempt"`
	ConnectedAt time.Time `json:"connected_at"`
}
