package scanner

import (
	"github.com/shopspring/decimal"

	"github.com/mohamedkhairy/squeeze-scanner/internal/models"
)

// AggregateFlows splits signed flow values into inflow and absolute
// outflow. Net is always inflow minus outflowAbs.
func AggregateFlows(values []float64) models.FlowSummary {
	inflow := decimal.Zero
	outflow := decimal.Zero
	for _, v := range values {
		d := decimal.NewFromFloat(v)
		if d.IsPositive() {
			inflow = inflow.Add(d)
		} else {
			outflow = outflow.Add(d.Abs())
		}
	}
	return models.FlowSummary{
		Inflow:     inflow,
		OutflowAbs: outflow,
		Net:        inflow.Sub(outflow),
	}
}

// flowOf aggregates the last-period taker net flow of results. Results
// without taker data contribute nothing.
func flowOf(results []models.ScanResult) *models.FlowSummary {
	values := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Features.Missing.Has(models.InputTaker) {
			continue
		}
		values = append(values, r.Features.TakerNetFlowLast)
	}
	summary := AggregateFlows(values)
	return &summary
}
