package bot

import (
	"context"
	"testing"
	"time"

	"tavola/models"
)

func TestParseReservationDate(t *testing.T) {
	now := time.Date(2026, 8, 30, 14, 0, 0, 0, time.UTC)

	cases := []struct {
		in string
		ok bool
	}{
		{"25/12/2026", true},
		{"30/08/2026", true}, // today is allowed
		{"29/08/2026", false},
		{"31/13/2026", false},
		{"31/02/2027", false},
		{"29/02/2028", true}, // leap day
		{"29/02/2027", false},
		{"1/9/2026", true},
		{"2026-12-25", false},
		{"25/12", false},
		{"tomorrow", false},
	}
	for _, c := range cases {
		_, err := parseReservationDate(c.in, now)
		if (err == nil) != c.ok {
			t.Errorf("parseReservationDate(%q): err = %v, want ok=%v", c.in, err, c.ok)
		}
	}
}

func TestReservationFlow(t *testing.T) {
	env := newTestEnv()
	cust := "93111"
	futureDate := time.Now().AddDate(0, 0, 14).Format("02/01/2006")

	env.say(t, cust, "hi")
	env.say(t, cust, "book table")
	if got := env.conv(t, cust).Step; got != models.StepReservationName {
		t.Fatalf("step = %s, want %s", got, models.StepReservationName)
	}

	env.say(t, cust, "Asha Rao")
	env.say(t, cust, futureDate)
	env.say(t, cust, "7:30 PM")

	env.say(t, cust, "25")
	if !env.sender.contains("between 1 and 20") {
		t.Fatal("party size above 20 must be rejected")
	}
	env.say(t, cust, "4")
	env.say(t, cust, "Window seat please")

	conv := env.conv(t, cust)
	if conv.Step != models.StepMainMenu {
		t.Fatalf("step = %s, want %s", conv.Step, models.StepMainMenu)
	}
	if conv.ActiveReservationID == "" {
		t.Fatal("reservation id not recorded on the conversation")
	}

	resv, err := env.resvs.ByID(context.Background(), conv.ActiveReservationID)
	if err != nil {
		t.Fatalf("reservation lookup: %v", err)
	}
	if resv.Status != models.ReservationPending {
		t.Fatalf("status = %s, want %s", resv.Status, models.ReservationPending)
	}
	if resv.PartySize != 4 || resv.CustomerName != "Asha Rao" {
		t.Fatalf("reservation = %+v", resv)
	}
	if resv.SpecialRequests != "Window seat please" {
		t.Fatalf("requests = %q", resv.SpecialRequests)
	}
}

func TestReservationNoneRequestsStoredEmpty(t *testing.T) {
	env := newTestEnv()
	cust := "93222"
	futureDate := time.Now().AddDate(0, 1, 0).Format("02/01/2006")

	env.say(t, cust, "hi")
	env.tap(t, cust, "reserve_table")
	env.say(t, cust, "Ravi")
	env.say(t, cust, futureDate)
	env.say(t, cust, "8 PM")
	env.say(t, cust, "2")
	env.say(t, cust, "None")

	resv, err := env.resvs.ByID(context.Background(), env.conv(t, cust).ActiveReservationID)
	if err != nil {
		t.Fatalf("reservation lookup: %v", err)
	}
	if resv.SpecialRequests != "" {
		t.Fatalf("requests = %q, want empty", resv.SpecialRequests)
	}
}

func TestReservationInvalidDateReprompts(t *testing.T) {
	env := newTestEnv()
	cust := "93333"
	env.say(t, cust, "hi")
	env.tap(t, cust, "reserve_table")
	env.say(t, cust, "Ravi")

	env.say(t, cust, "31/13/2026")
	if got := env.conv(t, cust).Step; got != models.StepReservationDate {
		t.Fatalf("step = %s, want %s", got, models.StepReservationDate)
	}
	if !env.sender.contains("valid future date") {
		t.Fatal("expected a date reprompt")
	}

	env.say(t, cust, time.Now().AddDate(0, 0, 7).Format("02/01/2006"))
	if got := env.conv(t, cust).Step; got != models.StepReservationTime {
		t.Fatalf("step = %s, want %s", got, models.StepReservationTime)
	}
}
