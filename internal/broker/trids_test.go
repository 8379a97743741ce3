package broker

import (
	"errors"
	"testing"
)

func TestTRIDFuturesDayOrder(t *testing.T) {
	tr, err := TRID(ClassFutures, SessionDay, false, ActionOrder, SideBuy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != "TTTO1101U" {
		t.Fatalf("got %s", tr)
	}
}

func TestTRIDFuturesVirtualDayOrder(t *testing.T) {
	tr, err := TRID(ClassFutures, SessionDay, true, ActionOrder, SideBuy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != "VTTO1101U" {
		t.Fatalf("got %s", tr)
	}
}

// P2: CLOSED session with no TR ID forces a DAY-tuple retry.
func TestTRIDClosedFallsBackToDay(t *testing.T) {
	tr, err := TRID(ClassFutures, SessionClosed, false, ActionOrder, SideBuy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != "TTTO1101U" {
		t.Fatalf("expected DAY fallback TR, got %s", tr)
	}
}

// The published table has no virtual+NIGHT row; it must fall back to the
// virtual+DAY tuple rather than failing outright.
func TestTRIDVirtualNightFallsBackToDay(t *testing.T) {
	tr, err := TRID(ClassFutures, SessionNight, true, ActionOrder, SideBuy)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != "VTTO1101U" {
		t.Fatalf("expected virtual DAY fallback, got %s", tr)
	}
}

func TestTRIDNoMatchFails(t *testing.T) {
	_, err := TRID(ClassOverseas, SessionDay, false, ActionOrderable, "")
	if err == nil {
		t.Fatalf("expected error for unmapped overseas orderable-amount TR")
	}
	var noTR *ErrNoTRID
	if !errors.As(err, &noTR) {
		t.Fatalf("expected *ErrNoTRID, got %T: %v", err, err)
	}
}

func TestTRIDStockOrderSides(t *testing.T) {
	buy, err := TRID(ClassStock, SessionDay, false, ActionOrder, SideBuy)
	if err != nil || buy != "TTTC0012U" {
		t.Fatalf("buy: got %s err=%v", buy, err)
	}
	sell, err := TRID(ClassStock, SessionDay, false, ActionOrder, SideSell)
	if err != nil || sell != "TTTC0011U" {
		t.Fatalf("sell: got %s err=%v", sell, err)
	}
}

func TestTRIDOverseasOrderSides(t *testing.T) {
	buy, err := TRID(ClassOverseas, SessionDay, true, ActionOrder, SideBuy)
	if err != nil || buy != "VTTT1002U" {
		t.Fatalf("buy: got %s err=%v", buy, err)
	}
	sell, err := TRID(ClassOverseas, SessionDay, true, ActionOrder, SideSell)
	if err != nil || sell != "VTTT1001U" {
		t.Fatalf("sell: got %s err=%v", sell, err)
	}
}

func TestTRIDStockBalance(t *testing.T) {
	tr, err := TRID(ClassStock, SessionDay, false, ActionBalance, "")
	if err != nil || tr != "TTTC8434R" {
		t.Fatalf("got %s err=%v", tr, err)
	}
}
