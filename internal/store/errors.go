package store

import "errors"

var (
	ErrServiceNotFound = errors.New("service not found")
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrWindowNotFound  = errors.New("window not found")
	ErrPrinterNotFound = errors.New("printer not found")
	ErrNoTicket        = errors.New("no ticket available")
	ErrInvalidState    = errors.New("invalid ticket state")
	ErrDuplicate       = errors.New("duplicate record")
	ErrBusy            = errors.New("store busy")
)
