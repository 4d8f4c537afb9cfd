package service

import (
	"math"

	"go-resale-dashboard/internal/model"
	"go-resale-dashboard/internal/monitoring"
	"go-resale-dashboard/internal/repository"
	"go-resale-dashboard/pkg/validator"

	"github.com/shopspring/decimal"
)

// EditPlan is the pair of writes that moves a product and its sale together.
type EditPlan struct {
	Product    repository.Write
	Sale       repository.Write
	Transition string
}

// Writes returns the plan as one batch, product first.
func (p EditPlan) Writes() []repository.Write {
	return []repository.Write{p.Product, p.Sale}
}

// ValidateProductEdit checks an edit before any document is read or written.
func ValidateProductEdit(edit model.ProductEdit) error {
	if edit.Sold {
		if edit.SoldPrice == nil || *edit.SoldPrice < 0 || math.IsNaN(*edit.SoldPrice) || math.IsInf(*edit.SoldPrice, 0) {
			return &ValidationError{Code: CodeMissingSoldPrice, Field: model.FieldSoldPrice}
		}
	}
	if errs := validator.ValidateStruct(&edit); len(errs) > 0 {
		return &ValidationError{Code: CodeInvalidField, Field: errs[0].FailedField, Tag: errs[0].Tag}
	}
	return nil
}

// PlanProductEdit computes the writes for applying edit to current. A nil
// current plans a new product under newID. saleExists reports whether the
// canonical sale document is already stored; it selects between creating the
// sale with fresh timestamps and updating it without touching them.
func PlanProductEdit(current *model.Product, newID string, edit model.ProductEdit, saleExists bool) (EditPlan, error) {
	if err := ValidateProductEdit(edit); err != nil {
		return EditPlan{}, err
	}

	id := newID
	wasSold := false
	if current != nil {
		id = current.ID
		wasSold = current.Sold
	}

	var soldPrice interface{}
	if edit.Sold {
		soldPrice = *edit.SoldPrice
	}

	fields := map[string]interface{}{
		model.FieldName:        edit.Name,
		model.FieldBuyPrice:    edit.BuyPrice,
		model.FieldSoldPrice:   soldPrice,
		model.FieldLink:        edit.Link,
		model.FieldDescription: edit.Description,
		model.FieldSold:        edit.Sold,
		model.FieldUpdatedAt:   repository.ServerTimestamp,
	}
	if edit.NewImageURL != nil {
		fields[model.FieldImageURL] = *edit.NewImageURL
	}

	switch {
	case edit.Sold && !wasSold:
		fields[model.FieldSoldAt] = repository.ServerTimestamp
	case !edit.Sold && wasSold:
		fields[model.FieldSoldAt] = nil
	}

	plan := EditPlan{
		Product: repository.Write{
			Op:         repository.OpUpdate,
			Collection: repository.CollectionProducts,
			ID:         id,
			Fields:     fields,
		},
	}
	if current == nil {
		plan.Product.Op = repository.OpCreate
		fields[model.FieldCreatedAt] = repository.ServerTimestamp
		if !edit.Sold {
			fields[model.FieldSoldAt] = nil
		}
	}

	if !edit.Sold {
		plan.Sale = repository.Write{
			Op:         repository.OpDelete,
			Collection: repository.CollectionSales,
			ID:         id,
		}
		if wasSold {
			plan.Transition = monitoring.TransitionReverted
		}
		return plan, nil
	}

	price := *edit.SoldPrice
	profit := decimal.NewFromFloat(price).Sub(decimal.NewFromFloat(edit.BuyPrice))
	saleFields := map[string]interface{}{
		model.FieldProductID:   id,
		model.FieldProductName: edit.Name,
		model.FieldBuyPrice:    edit.BuyPrice,
		model.FieldSoldPrice:   price,
		model.FieldProfit:      profit.InexactFloat64(),
		model.FieldUpdatedAt:   repository.ServerTimestamp,
	}
	plan.Sale = repository.Write{
		Op:         repository.OpUpdate,
		Collection: repository.CollectionSales,
		ID:         id,
		Fields:     saleFields,
	}
	plan.Transition = monitoring.TransitionRefreshed
	if !saleExists {
		plan.Sale.Op = repository.OpCreate
		saleFields[model.FieldSoldAt] = repository.ServerTimestamp
		saleFields[model.FieldCreatedAt] = repository.ServerTimestamp
		plan.Transition = monitoring.TransitionMarkedSold
	}
	return plan, nil
}
