package wapp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/julienschmidt/httprouter"
)

// Event is one inbound dialogue event. Exactly one of Text/OptionID is
// authoritative; when both arrive in a single message the option id wins.
type Event struct {
	CustomerID string
	Text       string
	OptionID   string
}

// Dialoguer consumes inbound events; implemented by the bot engine.
type Dialoguer interface {
	Handle(ctx context.Context, ev Event) error
}

// Webhook receives WhatsApp Cloud API callbacks.
type Webhook struct {
	Bot         Dialoguer
	VerifyToken string
}

func NewWebhook(bot Dialoguer) *Webhook {
	token := os.Getenv("VERIFY_TOKEN")
	if token == "" {
		token = "restaurant-verify-token"
	}
	return &Webhook{Bot: bot, VerifyToken: token}
}

// Verify answers the Cloud API subscription handshake.
func (h *Webhook) Verify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.VerifyToken {
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	http.Error(w, "verification failed", http.StatusForbidden)
}

// inboundPayload mirrors the slice of the Cloud API envelope we consume.
type inboundPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []inboundMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundMessage struct {
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive *struct {
		ButtonReply *struct {
			ID string `json:"id"`
		} `json:"button_reply"`
		ListReply *struct {
			ID string `json:"id"`
		} `json:"list_reply"`
	} `json:"interactive"`
}

// ParseEvent converts a raw message into a dialogue event.
func ParseEvent(m inboundMessage) Event {
	ev := Event{CustomerID: m.From}
	if m.Text != nil {
		ev.Text = m.Text.Body
	}
	if m.Interactive != nil {
		if m.Interactive.ButtonReply != nil {
			ev.OptionID = m.Interactive.ButtonReply.ID
		} else if m.Interactive.ListReply != nil {
			ev.OptionID = m.Interactive.ListReply.ID
		}
	}
	return ev
}

// Receive ingests inbound messages. The transport retries the payload on a
// non-2xx status, which is how a busy conversation gets redelivered.
func (h *Webhook) Receive(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var payload inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	failed := false
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				ev := ParseEvent(msg)
				if ev.CustomerID == "" {
					continue
				}
				if err := h.Bot.Handle(r.Context(), ev); err != nil {
					log.Printf("Webhook: handle event from %s: %v", ev.CustomerID, err)
					failed = true
				}
			}
		}
	}
	if failed {
		http.Error(w, "retry later", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusOK)
}
