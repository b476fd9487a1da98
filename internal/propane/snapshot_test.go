package propane

import (
	"testing"
	"time"
)

func TestNormalize_BasicFields(t *testing.T) {
	raw := map[string]any{
		"ForecastTankLevel": "84",
		"TankSize":          500.0,
		"RunOutDays":        45.0,
		"AmounDue":          "$1,234.56",
		"AccountBalance":    "-12.30",
		"LastPaymentDate":   "03/14/2026",
		"LastPaymentAmount": 86.0,
		"TankMonitor":       "1",
		"AutoPayment":       "Yes",
		"ShipToAccount":     "123456789",
		"ForecastLongName":  "Will Call",
	}

	s := Normalize(raw, time.UTC)

	if s.TankLevelPct != 84 {
		t.Errorf("TankLevelPct = %d, want 84", s.TankLevelPct)
	}
	if s.TankSizeGallons != 500 {
		t.Errorf("TankSizeGallons = %d, want 500", s.TankSizeGallons)
	}
	if s.DaysRemaining != 45 {
		t.Errorf("DaysRemaining = %d, want 45", s.DaysRemaining)
	}
	if s.AmountDue != 1234.56 {
		t.Errorf("AmountDue = %v, want 1234.56", s.AmountDue)
	}
	if s.AccountBalance != -12.30 {
		t.Errorf("AccountBalance = %v, want -12.30", s.AccountBalance)
	}
	if s.TankMonitor != "Yes" {
		t.Errorf("TankMonitor = %q, want Yes", s.TankMonitor)
	}
	if s.AutoPay != "Yes" {
		t.Errorf("AutoPay = %q, want Yes", s.AutoPay)
	}
	if s.AccountNumber != "123456789" {
		t.Errorf("AccountNumber = %q, want 123456789", s.AccountNumber)
	}
	if s.DeliveryType != "Will Call" {
		t.Errorf("DeliveryType = %q, want Will Call", s.DeliveryType)
	}
}

func TestNormalize_MissingFieldsDefault(t *testing.T) {
	s := Normalize(map[string]any{}, time.UTC)

	if s.TankLevelPct != 0 || s.TankSizeGallons != 0 || s.AmountDue != 0 {
		t.Errorf("numeric defaults: got %+v", s)
	}
	if s.AutoPay != "Unknown" || s.Paperless != "Unknown" || s.AccountNumber != "Unknown" {
		t.Errorf("string defaults: got AutoPay=%q Paperless=%q AccountNumber=%q",
			s.AutoPay, s.Paperless, s.AccountNumber)
	}
	if s.TankMonitor != "No" {
		t.Errorf("TankMonitor = %q, want No", s.TankMonitor)
	}
	if s.LastDeliveryDate != nil || s.NextDeliveryDate != nil || s.LastTankReading != nil {
		t.Errorf("dates should be nil: %+v", s)
	}
}

func TestNormalize_DeliveryFromOrders(t *testing.T) {
	raw := map[string]any{
		"myOrdersViewModel": map[string]any{
			"OneClickOrderViewModel": map[string]any{
				"LastDeliveryDate":     "2026-03-14T00:00:00",
				"LastDeliveredGallons": 120.5,
			},
		},
	}

	s := Normalize(raw, time.UTC)

	if s.LastDeliveryDate == nil {
		t.Fatal("LastDeliveryDate = nil")
	}
	want := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	if !s.LastDeliveryDate.Equal(want) {
		t.Errorf("LastDeliveryDate = %v, want %v", s.LastDeliveryDate, want)
	}
	if s.LastDeliveryGallons != 120.5 {
		t.Errorf("LastDeliveryGallons = %v, want 120.5", s.LastDeliveryGallons)
	}
}

func TestNormalize_NextDeliveryFallbackChain(t *testing.T) {
	base := func() map[string]any {
		return map[string]any{
			"NextDeliveryDate": "2026-06-01",
			"myOrdersViewModel": map[string]any{
				"OneClickOrderViewModel": map[string]any{
					"NextDeliveryDate": "2026-05-20",
				},
				"LstOpenOrders": []any{
					map[string]any{
						"estDeliveryWindowTo":   "2026-05-10",
						"estDeliveryWindowFrom": "2026-05-08",
						"orderDate":             "2026-05-01",
					},
				},
			},
		}
	}

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name string
		prep func(map[string]any)
		want time.Time
	}{
		{"window end wins", func(raw map[string]any) {}, day(2026, 5, 10)},
		{"window start next", func(raw map[string]any) {
			order(raw)["estDeliveryWindowTo"] = ""
		}, day(2026, 5, 8)},
		{"order date next", func(raw map[string]any) {
			order(raw)["estDeliveryWindowTo"] = ""
			order(raw)["estDeliveryWindowFrom"] = ""
		}, day(2026, 5, 1)},
		{"one-click next", func(raw map[string]any) {
			raw["myOrdersViewModel"].(map[string]any)["LstOpenOrders"] = []any{}
		}, day(2026, 5, 20)},
		{"account-level last", func(raw map[string]any) {
			mo := raw["myOrdersViewModel"].(map[string]any)
			mo["LstOpenOrders"] = []any{}
			mo["OneClickOrderViewModel"].(map[string]any)["NextDeliveryDate"] = ""
		}, day(2026, 6, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := base()
			tt.prep(raw)
			s := Normalize(raw, time.UTC)
			if s.NextDeliveryDate == nil {
				t.Fatal("NextDeliveryDate = nil")
			}
			if !s.NextDeliveryDate.Equal(tt.want) {
				t.Errorf("NextDeliveryDate = %v, want %v", s.NextDeliveryDate, tt.want)
			}
		})
	}
}

func order(raw map[string]any) map[string]any {
	return raw["myOrdersViewModel"].(map[string]any)["LstOpenOrders"].([]any)[0].(map[string]any)
}

func TestParseDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	tests := []struct {
		name string
		in   string
		want *time.Time
	}{
		{"iso datetime in local zone", "2026-03-14T08:30:00",
			tptr(time.Date(2026, 3, 14, 8, 30, 0, 0, ny))},
		{"rfc3339 utc", "2026-03-14T08:30:00Z",
			tptr(time.Date(2026, 3, 14, 8, 30, 0, 0, time.UTC))},
		{"us four digit year", "03/14/2026",
			tptr(time.Date(2026, 3, 14, 0, 0, 0, 0, ny))},
		{"us two digit year", "03/14/26",
			tptr(time.Date(2026, 3, 14, 0, 0, 0, 0, ny))},
		{"bare iso date", "2026-03-14",
			tptr(time.Date(2026, 3, 14, 0, 0, 0, 0, ny))},
		{"empty", "", nil},
		{"not applicable", "N/A", nil},
		{"unknown", "Unknown", nil},
		{"none", "None", nil},
		{"garbage", "yesterday-ish", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseDate(tt.in, ny)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("parseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got != nil && !got.Equal(*tt.want) {
				t.Fatalf("parseDate(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func tptr(t time.Time) *time.Time { return &t }

func TestSafeFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		def  float64
		want float64
	}{
		{"float", 12.5, 0, 12.5},
		{"int", 12, 0, 12},
		{"numeric string", "12.5", 0, 12.5},
		{"currency string", "$1,234.56", 0, 1234.56},
		{"negative currency", "-$12.30", 0, -12.30},
		{"empty string", "", 7, 7},
		{"garbage", "abc", 7, 7},
		{"nil", nil, 7, 7},
		{"wrong type", []any{}, 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := safeFloat(tt.in, tt.def); got != tt.want {
				t.Fatalf("safeFloat(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_ServiceAddress(t *testing.T) {
	full := map[string]any{
		"Street": "123 Main St", "City": "Springfield", "State": "VT", "Zip": "05156",
	}
	s := Normalize(full, time.UTC)
	if s.ServiceAddress != "123 Main St, Springfield, VT 05156" {
		t.Errorf("ServiceAddress = %q", s.ServiceAddress)
	}

	partial := map[string]any{"Street": "123 Main St", "City": "Springfield"}
	s = Normalize(partial, time.UTC)
	if s.ServiceAddress != "" {
		t.Errorf("partial address should be empty, got %q", s.ServiceAddress)
	}
}
