package services

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// BudgetTotal adds both flight legs, the hotel and every activity cost.
func BudgetTotal(p Plan) decimal.Decimal {
	total := p.Hotel.EstCostNumber.Decimal
	if p.Flights.Outbound != nil {
		total = total.Add(p.Flights.Outbound.EstCostNumber.Decimal)
	}
	if p.Flights.Return != nil {
		total = total.Add(p.Flights.Return.EstCostNumber.Decimal)
	}
	for _, d := range p.Days {
		total = total.Add(decimal.Sum(decimal.Zero, lo.Map(d.Activities, func(a Activity, _ int) decimal.Decimal {
			return a.CostNumber.Decimal
		})...))
	}
	return total
}
