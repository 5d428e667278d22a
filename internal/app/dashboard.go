package app

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/garyjia/expense-desk/internal/application/port"
	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// trailingMonths is the length of the monthly spending series
const trailingMonths = 6

// chartPalette colors categories that the catalogue does not know
var chartPalette = []string{"#8B5CF6", "#10B981", "#F59E0B", "#EF4444", "#3B82F6"}

// MonthTotal is the approved spend of one calendar month
type MonthTotal struct {
	Month  time.Time       `json:"month"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// CategoryTotal is the approved spend of one category label
type CategoryTotal struct {
	Name   string          `json:"name"`
	Color  string          `json:"color"`
	Amount decimal.Decimal `json:"amount"`
}

// DashboardStats is the aggregate view of the dashboard. Amounts are summed
// as plain values; currencies are not converted.
type DashboardStats struct {
	TotalSpent     decimal.Decimal `json:"total_spent"`
	ThisMonthSpend decimal.Decimal `json:"this_month_spend"`
	DraftCount     int             `json:"draft_count"`
	PendingCount   int             `json:"pending_count"`
	ApprovedCount  int             `json:"approved_count"`
	RejectedCount  int             `json:"rejected_count"`
	ByCategory     []CategoryTotal `json:"by_category"`
	Monthly        []MonthTotal    `json:"monthly"`
}

// DeriveDashboard aggregates expenses as of now. Only approved expenses
// contribute to amounts; counts cover every status. The category breakdown
// keeps the order in which labels first appear. Categories supply colors
// by name; unknown labels take the next palette color.
func DeriveDashboard(expenses []*entity.Expense, categories []*entity.Category, now time.Time) DashboardStats {
	stats := DashboardStats{
		TotalSpent:     decimal.Zero,
		ThisMonthSpend: decimal.Zero,
		ByCategory:     []CategoryTotal{},
	}

	colors := make(map[string]string, len(categories))
	for _, c := range categories {
		colors[c.Name] = c.Color
	}

	months := make([]MonthTotal, trailingMonths)
	for i := range months {
		offset := trailingMonths - 1 - i
		first := time.Date(now.Year(), now.Month()-time.Month(offset), 1, 0, 0, 0, 0, now.Location())
		months[i] = MonthTotal{Month: first, Label: first.Format("Jan"), Amount: decimal.Zero}
	}

	byCategory := map[string]int{}
	for _, e := range expenses {
		switch e.Status {
		case entity.StatusDraft:
			stats.DraftCount++
		case entity.StatusPending:
			stats.PendingCount++
		case entity.StatusRejected:
			stats.RejectedCount++
		case entity.StatusApproved:
			stats.ApprovedCount++
		}
		if e.Status != entity.StatusApproved {
			continue
		}

		amount := e.Amount.Value
		stats.TotalSpent = stats.TotalSpent.Add(amount)
		if sameMonth(e.ExpenseDate, now) {
			stats.ThisMonthSpend = stats.ThisMonthSpend.Add(amount)
		}
		for i := range months {
			if sameMonth(e.ExpenseDate, months[i].Month) {
				months[i].Amount = months[i].Amount.Add(amount)
				break
			}
		}

		label := e.CategoryLabel()
		idx, seen := byCategory[label]
		if !seen {
			color, known := colors[label]
			if !known || color == "" {
				color = chartPalette[len(stats.ByCategory)%len(chartPalette)]
			}
			idx = len(stats.ByCategory)
			byCategory[label] = idx
			stats.ByCategory = append(stats.ByCategory, CategoryTotal{Name: label, Color: color, Amount: decimal.Zero})
		}
		stats.ByCategory[idx].Amount = stats.ByCategory[idx].Amount.Add(amount)
	}

	stats.Monthly = months
	return stats
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// DashboardController loads and aggregates the dashboard view
type DashboardController struct {
	data     port.DataService
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu     sync.RWMutex
	stats  DashboardStats
	loaded bool
}

// NewDashboardController creates a dashboard controller
func NewDashboardController(data port.DataService, notifier Notifier, logger *zap.Logger) *DashboardController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardController{
		data:     data,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		stats:    DeriveDashboard(nil, nil, time.Now()),
	}
}

// Load reads the visible expenses and the category catalogue, then replaces
// the stats. On failure the previous stats are kept.
func (c *DashboardController) Load(ctx context.Context, auth AuthContext) Result {
	if !auth.Settled {
		return failed(ErrNotSettled)
	}
	if !auth.Authenticated {
		return failed(entity.ErrUnauthenticated)
	}

	var (
		expenses   []*entity.Expense
		categories []*entity.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = c.data.ListExpenses(gctx, port.ExpenseFilter{UserID: auth.ReadScope()})
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = c.data.ListCategories(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		res := failed(err)
		c.logger.Error("Failed to load dashboard", zap.Error(err))
		notifyError(c.notifier, "Failed to load dashboard data", res)
		return res
	}

	stats := DeriveDashboard(expenses, categories, c.now())

	c.mu.Lock()
	c.stats = stats
	c.loaded = true
	c.mu.Unlock()
	return ok()
}

// Stats returns the last successfully derived stats
func (c *DashboardController) Stats() DashboardStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Loaded reports whether a load has succeeded
func (c *DashboardController) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}
