package ws

import "time"

type ConnInfo struct {
	ConnID      string
	UserID      int
	TenantID    int
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
