package store

import (
	"context"
	"time"

	"github.com/jeogo/casnos-sub000/internal/models"
)

type CreateTicketInput struct {
	ServiceID    int64
	PrinterID    string
	TargetDevice string
	PrintStatus  models.PrintStatus
	CreatedAt    time.Time
}

type CallTicketInput struct {
	TicketID int64
	WindowID int64
	CalledAt time.Time
}

type ServeTicketInput struct {
	TicketID int64
	WindowID int64
	ServedAt time.Time
}

type RegisterDeviceInput struct {
	DeviceID   string
	Name       string
	IPAddress  string
	DeviceType models.DeviceType
	SeenAt     time.Time
}

type AddPrinterInput struct {
	DeviceID    string
	PrinterID   string
	PrinterName string
	IsDefault   bool
}

type ResetLedgerInput struct {
	Date         string
	Timestamp    time.Time
	TicketsReset bool
	FilesReset   bool
	CacheReset   bool
}

type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, error)
	GetTicket(ctx context.Context, id int64) (models.Ticket, error)
	ListTickets(ctx context.Context, limit int) ([]models.Ticket, error)
	ListPendingTickets(ctx context.Context, serviceID int64) ([]models.Ticket, error)
	CallTicket(ctx context.Context, input CallTicketInput) (models.Ticket, error)
	ServeTicket(ctx context.Context, input ServeTicketInput) (models.Ticket, error)
	CallNext(ctx context.Context, windowID, serviceID int64, calledAt time.Time) (models.Ticket, error)
	UpdatePrintStatus(ctx context.Context, id int64, from, to models.PrintStatus) (models.Ticket, error)
	DeleteTicket(ctx context.Context, id int64) error
	QueuePosition(ctx context.Context, id int64) (int, error)
	Statistics(ctx context.Context, dayStart time.Time) (models.QueueStatistics, error)
	DeleteAllTickets(ctx context.Context) (int64, error)
	ResetTicketSequence(ctx context.Context) error
}

type ServiceStore interface {
	CreateService(ctx context.Context, name string) (models.Service, error)
	GetService(ctx context.Context, id int64) (models.Service, error)
	ListServices(ctx context.Context) ([]models.Service, error)
	DeleteService(ctx context.Context, id int64) error
}

type DeviceStore interface {
	UpsertDevice(ctx context.Context, input RegisterDeviceInput) (models.Device, error)
	GetDevice(ctx context.Context, deviceID string) (models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	ListOnlineDevices(ctx context.Context) ([]models.Device, error)
	TouchDevice(ctx context.Context, deviceID string, seenAt time.Time) (models.Device, error)
	MarkOffline(ctx context.Context, deviceID string, at time.Time) (bool, error)
	MarkStaleOffline(ctx context.Context, cutoff time.Time) ([]string, error)
	AddPrinter(ctx context.Context, input AddPrinterInput) (models.DevicePrinter, error)
	ListPrinters(ctx context.Context, deviceID string) ([]models.DevicePrinter, error)
	RemovePrinter(ctx context.Context, deviceID, printerID string) error
	PruneOrphanPrinters(ctx context.Context) (int64, error)
}

type WindowStore interface {
	CreateWindow(ctx context.Context, serviceID *int64) (models.Window, error)
	GetWindow(ctx context.Context, id int64) (models.Window, error)
	ListWindows(ctx context.Context) ([]models.Window, error)
	UpdateWindow(ctx context.Context, id int64, serviceID *int64, active *bool) (models.Window, error)
	DeleteWindow(ctx context.Context, id int64) error
	EnsureWindowForDevice(ctx context.Context, deviceID string) (models.Window, error)
	DeactivateWindowForDevice(ctx context.Context, deviceID string) (bool, error)
}

type ResetStore interface {
	GetResetRecord(ctx context.Context, date string) (models.DailyResetRecord, bool, error)
	WriteResetRecord(ctx context.Context, input ResetLedgerInput) (models.DailyResetRecord, error)
	DeleteResetRecord(ctx context.Context, date string) error
	LastResetRecord(ctx context.Context) (models.DailyResetRecord, bool, error)
	PurgeResetRecords(ctx context.Context, before time.Time) (int64, error)
	Maintain(ctx context.Context) error
}

// Store is the full persistence surface consumed by the server.
type Store interface {
	TicketStore
	ServiceStore
	DeviceStore
	WindowStore
	ResetStore
	Close() error
}
