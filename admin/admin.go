package admin

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"golang.org/x/crypto/bcrypt"

	"tavola/globals"
	"tavola/middleware"
	"tavola/models"
	"tavola/notify"
	"tavola/store"
	"tavola/utils"
)

// Service is the operator-facing REST surface behind JWT auth.
type Service struct {
	Admins       store.AdminStore
	Orders       store.OrderStore
	Reservations store.ReservationStore
	Notifier     *notify.Notifier
}

func NewService(admins store.AdminStore, orders store.OrderStore, reservations store.ReservationStore, notifier *notify.Notifier) *Service {
	return &Service{Admins: admins, Orders: orders, Reservations: reservations, Notifier: notifier}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Service) Login(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	admin, err := s.Admins.ByUsername(r.Context(), req.Username)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		utils.RespondWithError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	claims := &middleware.Claims{
		Username: admin.Username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(globals.JwtSecret)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "token signing failed")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"token": token, "username": admin.Username})
}

func (s *Service) ListOrders(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	orders, err := s.Orders.Recent(r.Context(), 100)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"orders": orders})
}

type statusUpdate struct {
	Status string `json:"status"`
}

// UpdateOrderStatus applies an operator transition. Delivered is terminal
// and cancellation is refused once the food has been handed over.
func (s *Service) UpdateOrderStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	orderID := ps.ByName("orderid")

	var req statusUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := models.OrderStatus(req.Status)
	if !models.KnownOrderStatus(status) {
		utils.RespondWithError(w, http.StatusBadRequest, "unknown status")
		return
	}

	current, err := s.Orders.ByID(r.Context(), orderID)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if status == models.OrderCancelled && current.Status == models.OrderDelivered {
		utils.RespondWithError(w, http.StatusConflict, "delivered orders cannot be cancelled")
		return
	}

	order, err := s.Orders.UpdateStatus(r.Context(), orderID, status)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "update failed")
		return
	}

	if s.Notifier != nil {
		s.Notifier.OrderStatusChanged(r.Context(), order)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"order": order})
}

func (s *Service) ListReservations(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	reservations, err := s.Reservations.Recent(r.Context(), 100)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"reservations": reservations})
}

type reservationUpdate struct {
	Status      string `json:"status"`
	TableNumber string `json:"tableNumber"`
}

func (s *Service) UpdateReservationStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	reservationID := ps.ByName("reservationid")

	var req reservationUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := models.ReservationStatus(req.Status)
	if !models.KnownReservationStatus(status) {
		utils.RespondWithError(w, http.StatusBadRequest, "unknown status")
		return
	}

	resv, err := s.Reservations.UpdateStatus(r.Context(), reservationID, status, req.TableNumber)
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(w, http.StatusNotFound, "reservation not found")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "update failed")
		return
	}

	if s.Notifier != nil {
		s.Notifier.ReservationUpdated(string(status), resv)
		s.notifyReservationCustomer(r, resv)
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"reservation": resv})
}

func (s *Service) notifyReservationCustomer(r *http.Request, resv *models.Reservation) {
	if s.Notifier.Sender == nil {
		return
	}
	var body string
	switch resv.Status {
	case models.ReservationConfirmed:
		body = "✅ *Reservation Confirmed!*\n\n" +
			"📅 " + resv.Date.Format("02/01/2006") + " at " + resv.Time
		if resv.TableNumber != "" {
			body += "\n🪑 Table: " + resv.TableNumber
		}
		body += "\n\nSee you soon!"
	case models.ReservationCancelled:
		body = "❌ Your reservation for " + resv.Date.Format("02/01/2006") +
			" has been cancelled. Contact us if this is unexpected."
	default:
		return
	}
	_ = s.Notifier.Sender.SendText(r.Context(), resv.CustomerID, body)
}
