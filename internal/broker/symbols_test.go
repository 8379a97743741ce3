package broker

import (
	"testing"
	"time"
)

func TestTranslateFuturesSymbolUnmapped(t *testing.T) {
	got := TranslateFuturesSymbol("NOSUCHSYMBOL", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	if got != "NOSUCHSYMBOL" {
		t.Fatalf("expected passthrough, got %s", got)
	}
}

func TestTranslateFuturesSymbolBeforeExpiryUsesCurrentMonth(t *testing.T) {
	// Third Thursday of August 2026 is 2026-08-20.
	now := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	got := TranslateFuturesSymbol("USDKRW", now)
	if got != "175W08" {
		t.Fatalf("expected 175W08, got %s", got)
	}
}

func TestTranslateFuturesSymbolOnOrAfterExpiryRollsToNextMonth(t *testing.T) {
	now := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	got := TranslateFuturesSymbol("USDKRW", now)
	if got != "175W09" {
		t.Fatalf("expected roll to 175W09, got %s", got)
	}
}

func TestTranslateFuturesSymbolRollAcrossYearBoundary(t *testing.T) {
	// Third Thursday of December 2026 is 2026-12-17.
	now := time.Date(2026, 12, 17, 0, 0, 0, 0, time.UTC)
	got := TranslateFuturesSymbol("USDKRW", now)
	if got != "175W01" {
		t.Fatalf("expected roll to next January, got %s", got)
	}
}

func TestTranslateFuturesSymbolMonthEndRule(t *testing.T) {
	// GOLD expires at month end; 2026-08-30 is before 2026-08-31 expiry.
	before := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	if got := TranslateFuturesSymbol("GOLD", before); got != "132W08" {
		t.Fatalf("expected 132W08, got %s", got)
	}
	onExpiry := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if got := TranslateFuturesSymbol("GOLD", onExpiry); got != "132W09" {
		t.Fatalf("expected roll on month-end expiry, got %s", got)
	}
}

func TestMultiplierKnownAndDefault(t *testing.T) {
	if m := Multiplier("USDKRW"); m != 10000 {
		t.Fatalf("got %d", m)
	}
	if m := Multiplier("KOSPI200"); m != 250000 {
		t.Fatalf("got %d", m)
	}
	if m := Multiplier("UNKNOWN"); m != defaultMultiplier {
		t.Fatalf("expected default multiplier, got %d", m)
	}
}
