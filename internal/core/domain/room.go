package domain

import "time"

// Room is the relay-side record of one classroom session.
type Room struct {
	ID        string    `json:"id"`
	Code      RoomCode  `json:"code"`
	Title     string    `json:"title"`
	Teacher   Username  `json:"teacher"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
