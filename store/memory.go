package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"tavola/models"
)

// In-memory implementations with the same conditional-update semantics as
// the Mongo stores. Used by tests and by local development without a
// database.

type MemoryConversations struct {
	mu    sync.Mutex
	convs map[string]models.Conversation
}

func NewMemoryConversations() *MemoryConversations {
	return &MemoryConversations{convs: make(map[string]models.Conversation)}
}

func (s *MemoryConversations) GetOrCreate(_ context.Context, customerID string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok := s.convs[customerID]; ok {
		c := conv
		return &c, nil
	}
	conv := models.Conversation{
		CustomerID:     customerID,
		Step:           models.StepWelcome,
		LastActivityAt: time.Now(),
	}
	s.convs[customerID] = conv
	c := conv
	return &c, nil
}

func (s *MemoryConversations) Save(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.CustomerID] = *conv
	return nil
}

type MemoryCatalog struct {
	mu    sync.Mutex
	items map[string]models.MenuItem
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{items: make(map[string]models.MenuItem)}
}

func (s *MemoryCatalog) Put(item models.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ItemID] = item
}

func (s *MemoryCatalog) Remove(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, itemID)
}

func (s *MemoryCatalog) Categories(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var cats []string
	for _, it := range s.items {
		if it.IsAvailable && !seen[it.Category] {
			seen[it.Category] = true
			cats = append(cats, it.Category)
		}
	}
	sort.Strings(cats)
	return cats, nil
}

func (s *MemoryCatalog) ItemsByCategory(_ context.Context, category string, limit int64) ([]models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []models.MenuItem
	for _, it := range s.items {
		if it.Category == category && it.IsAvailable {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	if limit > 0 && int64(len(items)) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *MemoryCatalog) ItemByID(_ context.Context, itemID string) (*models.MenuItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if it, ok := s.items[itemID]; ok {
		item := it
		return &item, nil
	}
	return nil, ErrNotFound
}

type MemoryOrders struct {
	mu     sync.Mutex
	orders map[string]models.Order
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{orders: make(map[string]models.Order)}
}

func (s *MemoryOrders) Insert(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.OrderID] = *order
	return nil
}

func (s *MemoryOrders) SetPaymentLink(_ context.Context, orderID, linkID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok || order.PaymentLinkID != "" {
		return ErrNotFound
	}
	order.PaymentLinkID = linkID
	order.UpdatedAt = time.Now()
	s.orders[orderID] = order
	return nil
}

func (s *MemoryOrders) find(match func(models.Order) bool) (*models.Order, error) {
	for _, o := range s.orders {
		if match(o) {
			order := o
			return &order, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryOrders) ByID(_ context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(func(o models.Order) bool { return o.OrderID == orderID })
}

func (s *MemoryOrders) ByPaymentLinkID(_ context.Context, linkID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if linkID == "" {
		return nil, ErrNotFound
	}
	return s.find(func(o models.Order) bool { return o.PaymentLinkID == linkID })
}

func (s *MemoryOrders) ByPaymentID(_ context.Context, paymentID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if paymentID == "" {
		return nil, ErrNotFound
	}
	return s.find(func(o models.Order) bool { return o.PaymentID == paymentID })
}

func (s *MemoryOrders) RecentByCustomer(_ context.Context, customerID string, limit int64) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Order
	for _, o := range s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryOrders) Recent(_ context.Context, limit int64) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryOrders) LatestByCustomer(ctx context.Context, customerID string) (*models.Order, error) {
	recent, err := s.RecentByCustomer(ctx, customerID, 1)
	if err != nil {
		return nil, err
	}
	if len(recent) == 0 {
		return nil, ErrNotFound
	}
	return &recent[0], nil
}

func (s *MemoryOrders) MarkPaid(_ context.Context, orderID, paymentID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return false, ErrNotFound
	}
	if order.PaymentStatus != models.PaymentPending {
		return false, nil
	}
	order.PaymentStatus = models.PaymentCompleted
	order.Status = models.OrderPaymentVerified
	order.PaymentID = paymentID
	verifiedAt := at
	order.PaymentVerifiedAt = &verifiedAt
	order.UpdatedAt = at
	s.orders[orderID] = order
	return true, nil
}

func (s *MemoryOrders) ConfirmIfVerified(_ context.Context, orderID string) (*models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if order.Status != models.OrderPaymentVerified {
		o := order
		return &o, false, nil
	}
	order.Status = models.OrderConfirmed
	order.UpdatedAt = time.Now()
	s.orders[orderID] = order
	o := order
	return &o, true, nil
}

func (s *MemoryOrders) MarkFailed(_ context.Context, orderID string) (*models.Order, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, false, ErrNotFound
	}
	if order.Status == models.OrderCancelled || order.PaymentStatus == models.PaymentCompleted {
		o := order
		return &o, false, nil
	}
	order.Status = models.OrderCancelled
	order.PaymentStatus = models.PaymentFailed
	order.UpdatedAt = time.Now()
	s.orders[orderID] = order
	o := order
	return &o, true, nil
}

func (s *MemoryOrders) UpdateStatus(_ context.Context, orderID string, status models.OrderStatus) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	order.Status = status
	order.UpdatedAt = time.Now()
	if status == models.OrderDelivered {
		now := time.Now()
		order.DeliveredAt = &now
	}
	s.orders[orderID] = order
	o := order
	return &o, nil
}

type MemoryReservations struct {
	mu           sync.Mutex
	reservations map[string]models.Reservation
}

func NewMemoryReservations() *MemoryReservations {
	return &MemoryReservations{reservations: make(map[string]models.Reservation)}
}

func (s *MemoryReservations) Insert(_ context.Context, res *models.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[res.ReservationID] = *res
	return nil
}

func (s *MemoryReservations) ByID(_ context.Context, reservationID string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.reservations[reservationID]; ok {
		res := r
		return &res, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryReservations) Recent(_ context.Context, limit int64) ([]models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Reservation
	for _, r := range s.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryReservations) UpdateStatus(_ context.Context, reservationID string, status models.ReservationStatus, tableNumber string) (*models.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.reservations[reservationID]
	if !ok {
		return nil, ErrNotFound
	}
	res.Status = status
	if tableNumber != "" {
		res.TableNumber = tableNumber
	}
	res.UpdatedAt = time.Now()
	s.reservations[reservationID] = res
	r := res
	return &r, nil
}

type MemoryTasks struct {
	mu    sync.Mutex
	tasks map[string]models.ConfirmTask
}

func NewMemoryTasks() *MemoryTasks {
	return &MemoryTasks{tasks: make(map[string]models.ConfirmTask)}
}

func (s *MemoryTasks) Schedule(_ context.Context, orderID string, runAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[orderID]
	if !ok {
		task = models.ConfirmTask{OrderID: orderID, CreatedAt: time.Now()}
	}
	task.RunAt = runAt
	s.tasks[orderID] = task
	return nil
}

func (s *MemoryTasks) Due(_ context.Context, now time.Time) ([]models.ConfirmTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []models.ConfirmTask
	for _, t := range s.tasks {
		if !t.RunAt.After(now) {
			due = append(due, t)
		}
	}
	return due, nil
}

func (s *MemoryTasks) Delete(_ context.Context, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, orderID)
	return nil
}

func (s *MemoryTasks) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

type MemoryAdmins struct {
	mu     sync.Mutex
	admins map[string]models.AdminUser
}

func NewMemoryAdmins() *MemoryAdmins {
	return &MemoryAdmins{admins: make(map[string]models.AdminUser)}
}

func (s *MemoryAdmins) Put(u models.AdminUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[u.Username] = u
}

func (s *MemoryAdmins) ByUsername(_ context.Context, username string) (*models.AdminUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.admins[username]; ok {
		user := u
		return &user, nil
	}
	return nil, ErrNotFound
}
