package pay

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"

	"tavola/models"
	"tavola/razorpay"
	"tavola/store"
	"tavola/utils"
)

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		PaymentLink struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"payment_link"`
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Handlers exposes the payment HTTP surface: the provider webhook and the
// browser callback.
type Handlers struct {
	Reconciler    *Reconciler
	Orders        store.OrderStore
	WebhookSecret string
}

func NewHandlers(rec *Reconciler, orders store.OrderStore) *Handlers {
	return &Handlers{
		Reconciler:    rec,
		Orders:        orders,
		WebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
	}
}

// Webhook handles provider events. The signature is checked over the raw
// body before anything is parsed; a bad signature changes no state.
func (h *Handlers) Webhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	if !razorpay.VerifySignature(body, signature, h.WebhookSecret) {
		log.Printf("Webhook: signature rejected")
		utils.RespondWithError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ctx := r.Context()
	switch payload.Event {
	case "payment_link.paid":
		linkID := payload.Payload.PaymentLink.Entity.ID
		order, err := h.Orders.ByPaymentLinkID(ctx, linkID)
		if errors.Is(err, store.ErrNotFound) {
			utils.RespondWithError(w, http.StatusNotFound, "unknown payment link")
			return
		}
		if err != nil {
			utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		if _, err := h.Reconciler.SettleFromWebhook(ctx, order, payload.Payload.Payment.Entity.ID); err != nil {
			log.Printf("Webhook: settle link %s: %v", linkID, err)
			utils.RespondWithError(w, http.StatusInternalServerError, "settle failed")
			return
		}

	case "payment.captured":
		h.settleCaptured(w, r, payload)
		return

	case "payment.failed":
		h.failPayment(w, r, payload)
		return

	default:
		// Unhandled events are acknowledged so the provider stops retrying.
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "event": payload.Event})
}

func (h *Handlers) settleCaptured(w http.ResponseWriter, r *http.Request, payload webhookPayload) {
	ctx := r.Context()
	paymentID := payload.Payload.Payment.Entity.ID
	order, err := h.Orders.ByPaymentID(ctx, paymentID)
	if errors.Is(err, store.ErrNotFound) {
		// First sighting of this payment id; fall back to the link id carried
		// in the payment's order reference.
		order, err = h.Orders.ByPaymentLinkID(ctx, payload.Payload.Payment.Entity.OrderID)
	}
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "ignored", "event": payload.Event})
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if _, err := h.Reconciler.SettleFromWebhook(ctx, order, paymentID); err != nil {
		log.Printf("Webhook: settle payment %s: %v", paymentID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "settle failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "event": payload.Event})
}

func (h *Handlers) failPayment(w http.ResponseWriter, r *http.Request, payload webhookPayload) {
	ctx := r.Context()
	order, err := h.Orders.ByPaymentID(ctx, payload.Payload.Payment.Entity.ID)
	if errors.Is(err, store.ErrNotFound) {
		order, err = h.Orders.ByPaymentLinkID(ctx, payload.Payload.Payment.Entity.OrderID)
	}
	if errors.Is(err, store.ErrNotFound) {
		utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "ignored", "event": payload.Event})
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if _, err := h.Reconciler.Fail(ctx, order); err != nil {
		log.Printf("Webhook: fail order %s: %v", order.OrderID, err)
		utils.RespondWithError(w, http.StatusInternalServerError, "update failed")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, utils.M{"status": "success", "event": payload.Event})
}

// Callback is the browser landing page after the provider's payment page.
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	linkID := q.Get("razorpay_payment_link_id")
	paymentID := q.Get("razorpay_payment_id")
	linkStatus := q.Get("razorpay_payment_link_status")

	if linkID == "" {
		renderPage(w, http.StatusBadRequest, errorPage(""))
		return
	}

	order, err := h.Reconciler.SettleFromRedirect(r.Context(), linkID, paymentID, linkStatus)
	if errors.Is(err, ErrOrderNotFound) {
		renderPage(w, http.StatusNotFound, errorPage(""))
		return
	}
	if err != nil {
		log.Printf("Callback: settle link %s: %v", linkID, err)
		ref := ""
		if order != nil {
			ref = utils.ShortID(order.OrderID)
		}
		renderPage(w, http.StatusOK, pendingPage(ref))
		return
	}

	if order.PaymentStatus == models.PaymentCompleted {
		renderPage(w, http.StatusOK, successPage(utils.ShortID(order.OrderID)))
		return
	}
	renderPage(w, http.StatusOK, pendingPage(utils.ShortID(order.OrderID)))
}
