package broker

import (
	"fmt"
	"time"
)

// expiryRule names how a futures code's monthly expiry date is computed.
type expiryRule string

const (
	ruleThirdThursday  expiryRule = "third_thursday"
	ruleSecondThursday expiryRule = "second_thursday"
	ruleMonthEnd       expiryRule = "month_end"
)

// futuresCode is a base future code's static metadata.
type futuresCode struct {
	base       string
	expiryRule expiryRule
	multiplier int
}

// symbolTable maps an abstract signal symbol to its base future code.
// Grounded on the teacher's internal/market/dhan_data.go static instrument
// lookups, generalized to the KIS futures product set.
var symbolTable = map[string]futuresCode{
	"USDKRW": {base: "175W", expiryRule: ruleThirdThursday, multiplier: 10000},
	"KOSPI200": {base: "101W", expiryRule: ruleSecondThursday, multiplier: 250000},
	"MINIKOSPI200": {base: "106W", expiryRule: ruleSecondThursday, multiplier: 50000},
	"GOLD": {base: "132W", expiryRule: ruleMonthEnd, multiplier: 100},
}

// defaultMultiplier applies when a base code's multiplier is unknown.
const defaultMultiplier = 10000

// TranslateFuturesSymbol maps an abstract signal symbol to the broker's
// month-coded shortened product code, computing the month suffix from the
// code's expiry rule and the current wallclock. If the
// symbol has no table entry, it is returned unchanged.
func TranslateFuturesSymbol(symbol string, now time.Time) string {
	code, ok := symbolTable[symbol]
	if !ok {
		return symbol
	}
	month := resolveContractMonth(code.expiryRule, now)
	return fmt.Sprintf("%s%02d", code.base, int(month))
}

// Multiplier returns the contract multiplier for an abstract signal symbol,
// defaulting to 10000 if the symbol or its base code is unmapped.
func Multiplier(symbol string) int {
	code, ok := symbolTable[symbol]
	if !ok {
		return defaultMultiplier
	}
	return code.multiplier
}

// resolveContractMonth picks the current month if its expiry has not yet
// passed, else the next month: if the current wallclock is on or after the
// computed expiry for the current month, use the next month; otherwise use
// the current month.
func resolveContractMonth(rule expiryRule, now time.Time) time.Month {
	expiry := expiryDate(rule, now.Year(), now.Month())
	if !now.Before(expiry) {
		y, m := now.Year(), now.Month()+1
		if m > time.December {
			m = time.January
			y++
		}
		return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()).Month()
	}
	return now.Month()
}

// expiryDate computes the expiry wallclock date (at midnight) for the given
// rule within the given year/month.
func expiryDate(rule expiryRule, year int, month time.Month) time.Time {
	switch rule {
	case ruleThirdThursday:
		return nthWeekday(year, month, time.Thursday, 3)
	case ruleSecondThursday:
		return nthWeekday(year, month, time.Thursday, 2)
	case ruleMonthEnd:
		firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
		return firstOfNext.AddDate(0, 0, -1)
	default:
		return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	}
}

// nthWeekday returns the date of the nth occurrence of weekday in the given
// month (1-indexed: n=1 is the first occurrence).
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := int(weekday) - int(first.Weekday())
	if offset < 0 {
		offset += 7
	}
	day := 1 + offset + (n-1)*7
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
