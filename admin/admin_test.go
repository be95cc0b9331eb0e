package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"

	"tavola/middleware"
	"tavola/models"
	"tavola/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryOrders, *store.MemoryReservations) {
	t.Helper()
	admins := store.NewMemoryAdmins()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	admins.Put(models.AdminUser{Username: "manager", PasswordHash: string(hash), CreatedAt: time.Now()})

	orders := store.NewMemoryOrders()
	reservations := store.NewMemoryReservations()
	return NewService(admins, orders, reservations, nil), orders, reservations
}

func doLogin(t *testing.T, svc *Service, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/login", strings.NewReader(body))
	rec := httptest.NewRecorder()
	svc.Login(rec, req, nil)
	return rec
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _, _ := newTestService(t)

	rec := doLogin(t, svc, `{"username":"manager","password":"hunter2"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := middleware.ValidateJWT("Bearer " + resp.Token)
	if err != nil {
		t.Fatalf("issued token does not validate: %v", err)
	}
	if claims.Username != "manager" || claims.Role != "admin" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newTestService(t)

	if rec := doLogin(t, svc, `{"username":"manager","password":"wrong"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", rec.Code)
	}
	if rec := doLogin(t, svc, `{"username":"ghost","password":"hunter2"}`); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: status = %d, want 401", rec.Code)
	}
}

func seedPaidOrder(t *testing.T, orders *store.MemoryOrders, orderID string) {
	t.Helper()
	ctx := context.Background()
	err := orders.Insert(ctx, &models.Order{
		OrderID:       orderID,
		CustomerID:    "91999",
		CustomerName:  "Asha",
		Items:         []models.OrderItem{{ItemID: "m1", Name: "Pizza", Quantity: 1, UnitPrice: 250, LineTotal: 250}},
		TotalAmount:   250,
		OrderType:     models.OrderTypeTakeaway,
		Status:        models.OrderPaymentPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := orders.MarkPaid(ctx, orderID, "pay_1", time.Now()); err != nil {
		t.Fatalf("mark paid: %v", err)
	}
}

func patchStatus(t *testing.T, svc *Service, orderID, status string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPatch, "/api/admin/orders/"+orderID+"/status",
		strings.NewReader(`{"status":"`+status+`"}`))
	rec := httptest.NewRecorder()
	svc.UpdateOrderStatus(rec, req, httprouter.Params{{Key: "orderid", Value: orderID}})
	return rec
}

func TestUpdateOrderStatus(t *testing.T) {
	svc, orders, _ := newTestService(t)
	seedPaidOrder(t, orders, "o1")

	if rec := patchStatus(t, svc, "o1", "teleported"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown status: code = %d, want 400", rec.Code)
	}
	if rec := patchStatus(t, svc, "ghost", "preparing"); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown order: code = %d, want 404", rec.Code)
	}

	if rec := patchStatus(t, svc, "o1", "preparing"); rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}

	if rec := patchStatus(t, svc, "o1", "delivered"); rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	order, _ := orders.ByID(context.Background(), "o1")
	if order.DeliveredAt == nil {
		t.Fatal("delivery time not stamped")
	}

	if rec := patchStatus(t, svc, "o1", "cancelled"); rec.Code != http.StatusConflict {
		t.Fatalf("cancel after delivery: code = %d, want 409", rec.Code)
	}
}

func TestUpdateReservationStatus(t *testing.T) {
	svc, _, reservations := newTestService(t)
	ctx := context.Background()
	err := reservations.Insert(ctx, &models.Reservation{
		ReservationID: "r1",
		CustomerID:    "91999",
		CustomerName:  "Asha",
		Date:          time.Now().AddDate(0, 0, 7),
		Time:          "7:30 PM",
		PartySize:     4,
		Status:        models.ReservationPending,
		CreatedAt:     time.Now(),
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	req := httptest.NewRequest(http.MethodPatch, "/api/admin/reservations/r1/status",
		strings.NewReader(`{"status":"confirmed","tableNumber":"12"}`))
	rec := httptest.NewRecorder()
	svc.UpdateReservationStatus(rec, req, httprouter.Params{{Key: "reservationid", Value: "r1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body = %s", rec.Code, rec.Body.String())
	}

	resv, _ := reservations.ByID(ctx, "r1")
	if resv.Status != models.ReservationConfirmed || resv.TableNumber != "12" {
		t.Fatalf("reservation = %+v", resv)
	}
}

func TestReceiptRequiresPaidOrder(t *testing.T) {
	svc, orders, _ := newTestService(t)
	ctx := context.Background()
	if err := orders.Insert(ctx, &models.Order{
		OrderID:       "o1",
		Status:        models.OrderPaymentPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     time.Now(),
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/o1/receipt", nil)
	rec := httptest.NewRecorder()
	svc.Receipt(rec, req, httprouter.Params{{Key: "orderid", Value: "o1"}})
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409 for unpaid order", rec.Code)
	}
}

func TestReceiptRendersPDF(t *testing.T) {
	svc, orders, _ := newTestService(t)
	seedPaidOrder(t, orders, "o1")

	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders/o1/receipt", nil)
	rec := httptest.NewRecorder()
	svc.Receipt(rec, req, httprouter.Params{{Key: "orderid", Value: "o1"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatal("body is not a PDF document")
	}
}
