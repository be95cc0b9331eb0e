package bot

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tavola/models"
	"tavola/utils"
)

var dateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)

// parseReservationDate accepts DD/MM/YYYY, rejects impossible calendar dates
// and anything before today's midnight.
func parseReservationDate(text string, now time.Time) (time.Time, error) {
	m := dateRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, fmt.Errorf("bad format")
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])

	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
	// time.Date normalizes overflow (31/13 rolls over), so round-trip the parts.
	if d.Day() != day || int(d.Month()) != month || d.Year() != year {
		return time.Time{}, fmt.Errorf("no such date")
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if d.Before(today) {
		return time.Time{}, fmt.Errorf("date in the past")
	}
	return d, nil
}

func (e *Engine) startReservation(ctx context.Context, conv *models.Conversation) {
	conv.Scratch = models.Scratch{}
	conv.Step = models.StepReservationName
	e.sendText(ctx, conv.CustomerID, "🪑 *Table Reservation*\n\nPlease enter your name:")
}

func (e *Engine) collectReservationName(ctx context.Context, conv *models.Conversation, name string) {
	if len(name) < 2 {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a valid name (at least 2 characters)")
		return
	}
	conv.Scratch.Name = name
	conv.Step = models.StepReservationDate
	e.sendText(ctx, conv.CustomerID, "📅 Enter your preferred date (DD/MM/YYYY):\n\nExample: 25/12/2026")
}

func (e *Engine) collectReservationDate(ctx context.Context, conv *models.Conversation, text string) {
	d, err := parseReservationDate(text, time.Now())
	if err != nil {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a valid future date in DD/MM/YYYY format")
		return
	}
	conv.Scratch.ReservationDate = d
	conv.Step = models.StepReservationTime
	e.sendText(ctx, conv.CustomerID, "🕐 Enter your preferred time:\n\nExample: 7:30 PM")
}

func (e *Engine) collectReservationTime(ctx context.Context, conv *models.Conversation, text string) {
	if len(text) < 4 {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a valid time (e.g. 7:30 PM)")
		return
	}
	conv.Scratch.ReservationTime = text
	conv.Step = models.StepReservationParty
	e.sendText(ctx, conv.CustomerID, "👥 How many people? (1-20)")
}

func (e *Engine) collectReservationPartySize(ctx context.Context, conv *models.Conversation, text string) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > 20 {
		e.sendText(ctx, conv.CustomerID, "❌ Please enter a number between 1 and 20")
		return
	}
	conv.Scratch.PartySize = n
	conv.Step = models.StepReservationRequests
	e.sendText(ctx, conv.CustomerID, "📝 Any special requests? (Type 'none' if not)")
}

func (e *Engine) collectReservationRequests(ctx context.Context, conv *models.Conversation, text string) {
	requests := strings.TrimSpace(text)
	if strings.EqualFold(requests, "none") {
		requests = ""
	}

	resv := &models.Reservation{
		ReservationID:   utils.NewID(),
		CustomerID:      conv.CustomerID,
		CustomerName:    conv.Scratch.Name,
		Date:            conv.Scratch.ReservationDate,
		Time:            conv.Scratch.ReservationTime,
		PartySize:       conv.Scratch.PartySize,
		SpecialRequests: requests,
		Status:          models.ReservationPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := e.Reservations.Insert(ctx, resv); err != nil {
		log.Printf("Engine: insert reservation: %v", err)
		e.sendText(ctx, conv.CustomerID, "❌ Sorry, we couldn't save your reservation. Please try again.")
		conv.Step = models.StepMainMenu
		conv.Scratch = models.Scratch{}
		return
	}

	conv.ActiveReservationID = resv.ReservationID
	conv.Step = models.StepMainMenu
	conv.Scratch = models.Scratch{}

	e.sendText(ctx, conv.CustomerID, reservationConfirmationText(resv))
	if e.Notifier != nil {
		e.Notifier.NewReservation(resv)
	}
}

func reservationConfirmationText(r *models.Reservation) string {
	var b strings.Builder
	b.WriteString("✅ *Reservation Request Received!*\n\n")
	fmt.Fprintf(&b, "👤 Name: %s\n", r.CustomerName)
	fmt.Fprintf(&b, "📅 Date: %s\n", r.Date.Format("02/01/2006"))
	fmt.Fprintf(&b, "🕐 Time: %s\n", r.Time)
	fmt.Fprintf(&b, "👥 Party size: %d\n", r.PartySize)
	if r.SpecialRequests != "" {
		fmt.Fprintf(&b, "📝 Requests: %s\n", r.SpecialRequests)
	}
	b.WriteString("\nWe'll confirm your table shortly!")
	return b.String()
}
