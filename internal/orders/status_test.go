package orders

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusProcessing, true},
		{StatusProcessing, StatusPacked, true},
		{StatusPacked, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusProcessing, StatusCancelled, true},

		{StatusPacked, StatusCancelled, false},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusConfirmed, StatusPending, false},
		{StatusPending, StatusShipped, false},
		{StatusDelivered, StatusShipped, false},
		{StatusPending, StatusPending, false},
		{Status("bogus"), StatusConfirmed, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	got, err := ParseStatus(" Shipped ")
	if err != nil || got != StatusShipped {
		t.Fatalf("ParseStatus: got %q, %v", got, err)
	}
	if _, err := ParseStatus("lost"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if _, err := ParseStatus(""); err == nil {
		t.Fatalf("expected error for empty status")
	}
}

func TestTerminalAndCancellable(t *testing.T) {
	for _, s := range []Status{StatusDelivered, StatusCancelled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusPacked, StatusShipped} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StatusProcessing.Cancellable() || StatusPacked.Cancellable() {
		t.Errorf("cancellable window wrong")
	}
	if Status("bogus").IsTerminal() || Status("bogus").Cancellable() {
		t.Errorf("unknown status must be neither terminal nor cancellable")
	}
}
