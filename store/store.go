package store

import (
	"context"
	"errors"
	"time"

	"tavola/models"
)

// ErrNotFound is returned when a lookup resolves no record.
var ErrNotFound = errors.New("store: not found")

// ConversationStore holds the per-customer dialogue state.
type ConversationStore interface {
	// GetOrCreate returns the customer's conversation, creating a fresh one
	// at the welcome step on first contact.
	GetOrCreate(ctx context.Context, customerID string) (*models.Conversation, error)
	Save(ctx context.Context, conv *models.Conversation) error
}

// CatalogStore is the read side of the menu used by the dialogue engine.
type CatalogStore interface {
	Categories(ctx context.Context) ([]string, error)
	ItemsByCategory(ctx context.Context, category string, limit int64) ([]models.MenuItem, error)
	ItemByID(ctx context.Context, itemID string) (*models.MenuItem, error)
}

// OrderStore persists orders. MarkPaid and ConfirmIfVerified are atomic
// conditional updates: they apply only while the guard status still holds,
// so concurrent writers produce exactly one winner.
type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	SetPaymentLink(ctx context.Context, orderID, linkID string) error
	ByID(ctx context.Context, orderID string) (*models.Order, error)
	ByPaymentLinkID(ctx context.Context, linkID string) (*models.Order, error)
	ByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	RecentByCustomer(ctx context.Context, customerID string, limit int64) ([]models.Order, error)
	LatestByCustomer(ctx context.Context, customerID string) (*models.Order, error)
	Recent(ctx context.Context, limit int64) ([]models.Order, error)

	// MarkPaid transitions paymentStatus pending->completed and status to
	// payment_verified. Returns false when the order was no longer pending.
	MarkPaid(ctx context.Context, orderID, paymentID string, at time.Time) (bool, error)

	// ConfirmIfVerified advances payment_verified->confirmed. Returns the
	// updated order and false when the order had already moved on.
	ConfirmIfVerified(ctx context.Context, orderID string) (*models.Order, bool, error)

	// MarkFailed cancels the order and fails its payment. A no-op against an
	// already-cancelled order or a completed payment.
	MarkFailed(ctx context.Context, orderID string) (*models.Order, bool, error)

	// UpdateStatus applies an operator transition unconditionally.
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (*models.Order, error)
}

type ReservationStore interface {
	Insert(ctx context.Context, res *models.Reservation) error
	ByID(ctx context.Context, reservationID string) (*models.Reservation, error)
	Recent(ctx context.Context, limit int64) ([]models.Reservation, error)
	UpdateStatus(ctx context.Context, reservationID string, status models.ReservationStatus, tableNumber string) (*models.Reservation, error)
}

// TaskStore is the durable auto-confirmation queue.
type TaskStore interface {
	// Schedule arms (or re-arms) the order's task, keyed by order id.
	Schedule(ctx context.Context, orderID string, runAt time.Time) error
	Due(ctx context.Context, now time.Time) ([]models.ConfirmTask, error)
	Delete(ctx context.Context, orderID string) error
}

type AdminStore interface {
	ByUsername(ctx context.Context, username string) (*models.AdminUser, error)
}
