package shared

import "fmt"

// TicketLockKey names the per-ticket critical section in logs and metrics.
func TicketLockKey(ticketID int64) string {
	return fmt.Sprintf("ticket:%d:lock", ticketID)
}
