package models

import "time"

// TicketStatus is the queue position of a ticket. Transitions are
// forward-only: pending -> called -> served.
type TicketStatus string

const (
	TicketPending TicketStatus = "pending"
	TicketCalled  TicketStatus = "called"
	TicketServed  TicketStatus = "served"
)

// PrintStatus tracks the physical ticket slip independently of the
// queue status. printed and print_failed are terminal.
type PrintStatus string

const (
	PrintPending  PrintStatus = "pending"
	PrintPrinting PrintStatus = "printing"
	PrintPrinted  PrintStatus = "printed"
	PrintFailed   PrintStatus = "print_failed"
)

type Ticket struct {
	ID           int64        `json:"id"`
	TicketNumber string       `json:"ticket_number"`
	ServiceID    int64        `json:"service_id"`
	Status       TicketStatus `json:"status"`
	PrintStatus  PrintStatus  `json:"print_status"`
	CreatedAt    time.Time    `json:"created_at"`
	CalledAt     *time.Time   `json:"called_at,omitempty"`
	ServedAt     *time.Time   `json:"served_at,omitempty"`
	WindowID     *int64       `json:"window_id,omitempty"`
	PrinterID    string       `json:"printer_id,omitempty"`
	TargetDevice string       `json:"target_device,omitempty"`
}

// QueueStatistics is the aggregate view served to admin terminals.
type QueueStatistics struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Called  int `json:"called"`
	Served  int `json:"served"`
	Today   int `json:"today"`
}
