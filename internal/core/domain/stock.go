package domain

import "time"

type Stock struct {
	ProductKey string
	Quantity   int
	Version    int // optimistic locking
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
