package report

import (
	"time"

	"go-resale-dashboard/internal/model"

	"github.com/shopspring/decimal"
)

// OwnerShare is one owner's slice of the latest sale's profit.
type OwnerShare struct {
	OwnerID      string  `json:"owner_id"`
	Name         string  `json:"name"`
	Contribution float64 `json:"contribution"`
	Weight       float64 `json:"weight"`
	Amount       float64 `json:"amount"`
}

// Allocation distributes the profit of the most recent sale.
type Allocation struct {
	Sale   *model.Sale  `json:"sale"`
	Profit float64      `json:"profit"`
	Shares []OwnerShare `json:"shares"`
}

// saleTime is SoldAt, or CreatedAt for records written without one.
func saleTime(s model.Sale) time.Time {
	if s.SoldAt != nil && !s.SoldAt.IsZero() {
		return *s.SoldAt
	}
	return s.CreatedAt
}

// LatestSale returns the most recent sale of an existing product. When no sale
// references an existing product it falls back to any sale carrying a product
// id, so a short desync does not blank the display. Equal timestamps resolve
// to the greater document id. Returns nil when there is no candidate.
func LatestSale(sales []model.Sale, products []model.Product) *model.Sale {
	existing := productIDs(products)
	var candidates []model.Sale
	for _, s := range sales {
		if _, ok := existing[s.ProductID]; ok && s.ProductID != "" {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		for _, s := range sales {
			if s.ProductID != "" {
				candidates = append(candidates, s)
			}
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	best := candidates[0]
	for _, s := range candidates[1:] {
		bt, st := saleTime(best), saleTime(s)
		if st.After(bt) || (st.Equal(bt) && s.ID > best.ID) {
			best = s
		}
	}
	return &best
}

func contribution(o model.Owner) decimal.Decimal {
	c := amount(o.ContributionAmount)
	if c.IsNegative() {
		return decimal.Zero
	}
	return c
}

// TotalContribution sums contributions, each clamped at zero.
func TotalContribution(owners []model.Owner) float64 {
	total := decimal.Zero
	for _, o := range owners {
		total = total.Add(contribution(o))
	}
	return total.InexactFloat64()
}

// Weights returns each owner's fraction of total. A non-positive total splits
// equally.
func Weights(owners []model.Owner, total float64) map[string]float64 {
	weights := make(map[string]float64, len(owners))
	if len(owners) == 0 {
		return weights
	}
	t := amount(total)
	if t.IsPositive() {
		for _, o := range owners {
			weights[o.ID] = contribution(o).Div(t).InexactFloat64()
		}
		return weights
	}
	equal := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(owners))))
	for _, o := range owners {
		weights[o.ID] = equal.InexactFloat64()
	}
	return weights
}

// Shares splits latest.Profit by the owners' Weights. Every share is zero
// without a sale. Amounts are not rounded to currency units.
func Shares(owners []model.Owner, latest *model.Sale) map[string]float64 {
	shares := make(map[string]float64, len(owners))
	if latest == nil {
		for _, o := range owners {
			shares[o.ID] = 0
		}
		return shares
	}

	profit := amount(latest.Profit)
	weights := Weights(owners, TotalContribution(owners))
	for _, o := range owners {
		shares[o.ID] = profit.Mul(amount(weights[o.ID])).InexactFloat64()
	}
	return shares
}

// Allocate combines LatestSale, Weights and Shares for display.
func Allocate(owners []model.Owner, sales []model.Sale, products []model.Product) Allocation {
	latest := LatestSale(sales, products)
	weights := Weights(owners, TotalContribution(owners))
	shares := Shares(owners, latest)

	alloc := Allocation{Sale: latest, Shares: make([]OwnerShare, 0, len(owners))}
	if latest != nil {
		alloc.Profit = amount(latest.Profit).InexactFloat64()
	}
	for _, o := range owners {
		alloc.Shares = append(alloc.Shares, OwnerShare{
			OwnerID:      o.ID,
			Name:         o.Name,
			Contribution: contribution(o).InexactFloat64(),
			Weight:       weights[o.ID],
			Amount:       shares[o.ID],
		})
	}
	return alloc
}
