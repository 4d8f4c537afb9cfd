package service

import (
	"time"

	"go-resale-dashboard/internal/monitoring"
	"go-resale-dashboard/internal/report"
)

// Summary is the KPI block and revenue/profit series for one window.
type Summary struct {
	From   string              `json:"from,omitempty"`
	To     string              `json:"to,omitempty"`
	KPIs   report.KPIs         `json:"kpis"`
	Series []report.DailyPoint `json:"series"`
}

type DashboardService interface {
	Summary(r report.Range) Summary
	Allocation() report.Allocation
	Calendar() report.Calendar
}

type dashboardService struct {
	source   StateSource
	calendar report.Calendar
	now      func() time.Time
}

func NewDashboardService(source StateSource, calendar report.Calendar, now func() time.Time) DashboardService {
	if now == nil {
		now = time.Now
	}
	return &dashboardService{source: source, calendar: calendar, now: now}
}

// Summary recomputes everything from the current snapshot.
func (s *dashboardService) Summary(r report.Range) Summary {
	defer monitoring.ObserveDashboard("summary", time.Now())

	state := s.source.State()
	qualifying := report.FilterSales(state.Sales, state.Products, r, s.calendar, s.now())

	summary := Summary{
		KPIs:   report.ComputeKPIs(state.Products, qualifying),
		Series: report.DailySeries(qualifying, s.calendar),
	}
	if r.From != nil {
		summary.From = s.calendar.Day(*r.From)
	}
	if r.To != nil {
		summary.To = s.calendar.Day(*r.To)
	}
	return summary
}

func (s *dashboardService) Allocation() report.Allocation {
	defer monitoring.ObserveDashboard("allocation", time.Now())

	state := s.source.State()
	return report.Allocate(state.Owners, state.Sales, state.Products)
}

func (s *dashboardService) Calendar() report.Calendar {
	return s.calendar
}
