package propane

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

// AccountSnapshot is one refresh cycle's normalized view of the portal's
// account summary. Field-level problems in the raw payload are recovered by
// defaulting, never by returning an error: a bad field degrades only the
// readings that depend on it.
type AccountSnapshot struct {
	TankLevelPct      int     `json:"tank_level_pct"`
	TankSizeGallons   int     `json:"tank_size_gallons"`
	DaysRemaining     int     `json:"days_remaining"` // vendor-reported estimate
	AmountDue         float64 `json:"amount_due"`
	AccountBalance    float64 `json:"account_balance"`
	LastPaymentDate   string  `json:"last_payment_date"`
	LastPaymentAmount float64 `json:"last_payment_amount"`

	LastTankReading *time.Time `json:"last_tank_reading,omitempty"`
	TankMonitor     string     `json:"tank_monitor"`

	LastDeliveryDate    *time.Time `json:"last_delivery_date,omitempty"`
	LastDeliveryGallons float64    `json:"last_delivery_gallons"`
	NextDeliveryDate    *time.Time `json:"next_delivery_date,omitempty"`

	AutoPay       string `json:"auto_pay"`
	Paperless     string `json:"paperless"`
	AccountNumber string `json:"account_number"`

	ServiceAddress string `json:"service_address,omitempty"`
	Street         string `json:"street,omitempty"`
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	Zip            string `json:"zip,omitempty"`

	DeliveryType string `json:"delivery_type"`
	PaymentTerms string `json:"payment_terms"`
}

// Normalize converts the raw account summary (the loosely typed JSON object
// scraped out of the dashboard page) into an AccountSnapshot. loc is the zone
// used for date-only values; pass nil for the system local zone.
func Normalize(raw map[string]any, loc *time.Location) AccountSnapshot {
	if loc == nil {
		loc = time.Local
	}

	myOrders, _ := raw["myOrdersViewModel"].(map[string]any)
	var oneClick map[string]any
	if myOrders != nil {
		oneClick, _ = myOrders["OneClickOrderViewModel"].(map[string]any)
	}

	var deliveryDateRaw, deliveryGallonsRaw any
	if oneClick != nil {
		deliveryDateRaw = oneClick["LastDeliveryDate"]
		deliveryGallonsRaw = oneClick["LastDeliveredGallons"]
	}

	snap := AccountSnapshot{
		// The portal really does spell it "AmounDue".
		TankLevelPct:      safeInt(raw["ForecastTankLevel"], 0),
		TankSizeGallons:   safeInt(raw["TankSize"], 0),
		DaysRemaining:     safeInt(raw["RunOutDays"], 0),
		AmountDue:         safeFloat(raw["AmounDue"], 0),
		AccountBalance:    safeFloat(raw["AccountBalance"], 0),
		LastPaymentDate:   stringOr(raw["LastPaymentDate"], ""),
		LastPaymentAmount: safeFloat(raw["LastPaymentAmount"], 0),

		LastTankReading: parseDate(raw["TMReadDate"], loc),

		LastDeliveryDate:    parseDate(deliveryDateRaw, loc),
		LastDeliveryGallons: safeFloat(deliveryGallonsRaw, 0),

		AutoPay:       stringOr(raw["AutoPayment"], "Unknown"),
		Paperless:     stringOr(raw["Paperless"], "Unknown"),
		AccountNumber: stringOr(raw["ShipToAccount"], "Unknown"),

		Street: stringOr(raw["Street"], ""),
		City:   stringOr(raw["City"], ""),
		State:  stringOr(raw["State"], ""),
		Zip:    stringOr(raw["Zip"], ""),

		DeliveryType: stringOr(raw["ForecastLongName"], "Unknown"),
		PaymentTerms: stringOr(raw["PaymentTermsUpDate"], "Unknown"),
	}

	snap.TankMonitor = "No"
	if stringOr(raw["TankMonitor"], "") == "1" {
		snap.TankMonitor = "Yes"
	}

	snap.NextDeliveryDate = parseDate(resolveNextDeliveryDate(raw, myOrders, oneClick), loc)

	// The composed address is only meaningful when every part is present.
	if snap.Street != "" && snap.City != "" && snap.State != "" && snap.Zip != "" {
		snap.ServiceAddress = fmt.Sprintf("%s, %s, %s %s", snap.Street, snap.City, snap.State, snap.Zip)
	}

	return snap
}

// resolveNextDeliveryDate walks the fallback chain for the next delivery date:
// open order window end, window start, order date, one-click next date, then
// the account-level field. First non-empty value wins.
func resolveNextDeliveryDate(raw, myOrders, oneClick map[string]any) any {
	if myOrders != nil {
		if openOrders, ok := myOrders["LstOpenOrders"].([]any); ok && len(openOrders) > 0 {
			if order, ok := openOrders[0].(map[string]any); ok {
				for _, key := range []string{"estDeliveryWindowTo", "estDeliveryWindowFrom", "orderDate"} {
					if v := stringOr(order[key], ""); v != "" {
						return v
					}
				}
			}
		}
	}
	if oneClick != nil {
		if v := stringOr(oneClick["NextDeliveryDate"], ""); v != "" {
			return v
		}
	}
	return raw["NextDeliveryDate"]
}

// safeFloat coerces a loosely typed value to float64, tolerating currency
// formatting. Missing, empty, or non-numeric values yield def.
func safeFloat(v any, def float64) float64 {
	switch t := v.(type) {
	case nil:
		return def
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		s := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(t))
		if s == "" {
			return def
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return def
		}
		return f
	default:
		return def
	}
}

// safeInt coerces a loosely typed value to int, yielding def on anything it
// cannot make sense of.
func safeInt(v any, def int) int {
	switch t := v.(type) {
	case nil:
		return def
	case float64:
		return int(t)
	case int:
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return def
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int(f)
		}
		return def
	default:
		return def
	}
}

func stringOr(v any, def string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

// dateSentinels are portal values that mean "no date".
var dateSentinels = map[string]bool{"": true, "N/A": true, "Unknown": true, "None": true}

// parseDate parses the portal's three date shapes: ISO-8601 with a T (a
// trailing Z means UTC), US-style MM/DD/YYYY or MM/DD/YY, and a bare ISO
// date. Values without zone information are interpreted in loc, not UTC, so
// date-only values never roll back a calendar day in western timezones.
// Unparsable input yields nil, never an error.
func parseDate(v any, loc *time.Location) *time.Time {
	s := strings.TrimSpace(stringOr(v, ""))
	if dateSentinels[s] {
		return nil
	}

	var t time.Time
	var err error

	switch {
	case strings.Contains(s, "T"):
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			t, err = time.ParseInLocation("2006-01-02T15:04:05", s, loc)
		}
	case strings.Contains(s, "/"):
		layout := "01/02/2006"
		if parts := strings.Split(s, "/"); len(parts) == 3 && len(parts[2]) == 2 {
			layout = "01/02/06"
		}
		t, err = time.ParseInLocation(layout, s, loc)
	default:
		t, err = time.ParseInLocation("2006-01-02", s, loc)
	}

	if err != nil {
		log.Printf("propane: could not parse date %q: %v", s, err)
		return nil
	}
	return &t
}
