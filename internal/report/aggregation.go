// Package report derives dashboard figures from collection snapshots. Every
// function is pure: it reads the slices it is given and never fails, so a
// corrupt document only loses its own contribution.
package report

import (
	"math"
	"sort"
	"time"

	"go-resale-dashboard/internal/model"

	"github.com/shopspring/decimal"
)

// ClockSkewSlack widens both window edges to absorb the gap between a
// client-side read and the server timestamp that was actually committed.
const ClockSkewSlack = 60 * time.Second

const dayLayout = "2006-01-02"

// Range is a reporting window in calendar days. A nil From selects nothing;
// a nil To means today.
type Range struct {
	From *time.Time
	To   *time.Time
}

// Calendar fixes day boundaries independently of the host's local zone.
type Calendar struct {
	Location *time.Location
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calendar) StartOfDay(t time.Time) time.Time {
	t = t.In(c.location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.location())
}

func (c Calendar) EndOfDay(t time.Time) time.Time {
	return c.StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Day returns the YYYY-MM-DD bucket key of t.
func (c Calendar) Day(t time.Time) string {
	return t.In(c.location()).Format(dayLayout)
}

// ParseDay parses a YYYY-MM-DD string as midnight in the calendar's zone.
func (c Calendar) ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation(dayLayout, s, c.location())
}

// Bounds returns the inclusive instant window of r, slack included.
func (c Calendar) Bounds(r Range, now time.Time) (start, end time.Time, ok bool) {
	if r.From == nil {
		return time.Time{}, time.Time{}, false
	}
	to := now
	if r.To != nil {
		to = *r.To
	}
	start = c.StartOfDay(*r.From).Add(-ClockSkewSlack)
	end = c.EndOfDay(to).Add(ClockSkewSlack)
	return start, end, true
}

// KPIs are the headline numbers of the dashboard.
type KPIs struct {
	TotalRevenue float64 `json:"total_revenue"`
	TotalCost    float64 `json:"total_cost"`
	TotalProfit  float64 `json:"total_profit"`
	ItemsSold    int     `json:"items_sold"`
}

// DailyPoint is one bucket of the revenue/profit series.
type DailyPoint struct {
	Day     string  `json:"day"`
	Revenue float64 `json:"revenue"`
	Profit  float64 `json:"profit"`
}

func productIDs(products []model.Product) map[string]struct{} {
	ids := make(map[string]struct{}, len(products))
	for _, p := range products {
		ids[p.ID] = struct{}{}
	}
	return ids
}

// FilterSales keeps the sales whose product still exists and whose sold time
// lies inside the slack-widened window. Duplicates sharing a product id are
// not collapsed here; removing them is the sync side's job.
func FilterSales(sales []model.Sale, products []model.Product, r Range, cal Calendar, now time.Time) []model.Sale {
	start, end, ok := cal.Bounds(r, now)
	if !ok {
		return nil
	}
	existing := productIDs(products)

	var out []model.Sale
	for _, s := range sales {
		if _, ok := existing[s.ProductID]; !ok || s.ProductID == "" {
			continue
		}
		if s.SoldAt == nil || s.SoldAt.IsZero() {
			continue
		}
		if s.SoldAt.Before(start) || s.SoldAt.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// ComputeKPIs sums the qualifying sales. TotalCost values the unsold inventory
// as it stands now and ignores the reporting window.
func ComputeKPIs(products []model.Product, qualifying []model.Sale) KPIs {
	cost := decimal.Zero
	for _, p := range products {
		if !p.Sold {
			cost = cost.Add(amount(p.BuyPrice))
		}
	}

	revenue, profit := decimal.Zero, decimal.Zero
	for _, s := range qualifying {
		revenue = revenue.Add(amount(s.SoldPrice))
		profit = profit.Add(amount(s.Profit))
	}

	return KPIs{
		TotalRevenue: revenue.InexactFloat64(),
		TotalCost:    cost.InexactFloat64(),
		TotalProfit:  profit.InexactFloat64(),
		ItemsSold:    len(qualifying),
	}
}

// DailySeries buckets sales by calendar day, ascending. Days without sales are
// absent rather than zero.
func DailySeries(qualifying []model.Sale, cal Calendar) []DailyPoint {
	type bucket struct{ revenue, profit decimal.Decimal }
	buckets := make(map[string]*bucket)
	for _, s := range qualifying {
		if s.SoldAt == nil || s.SoldAt.IsZero() {
			continue
		}
		day := cal.Day(*s.SoldAt)
		b, ok := buckets[day]
		if !ok {
			b = &bucket{revenue: decimal.Zero, profit: decimal.Zero}
			buckets[day] = b
		}
		b.revenue = b.revenue.Add(amount(s.SoldPrice))
		b.profit = b.profit.Add(amount(s.Profit))
	}

	days := make([]string, 0, len(buckets))
	for day := range buckets {
		days = append(days, day)
	}
	sort.Strings(days)

	series := make([]DailyPoint, 0, len(days))
	for _, day := range days {
		b := buckets[day]
		series = append(series, DailyPoint{
			Day:     day,
			Revenue: b.revenue.InexactFloat64(),
			Profit:  b.profit.InexactFloat64(),
		})
	}
	return series
}

// amount maps NaN and infinities to zero before entering decimal arithmetic.
func amount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
