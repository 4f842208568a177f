package anomaly

import (
	"fmt"

	"github.com/ecosense/invascope/pkg/errors"
	"github.com/ecosense/invascope/pkg/models"
)

// Recompose reconstructs expected-value bounds from trend + seasonal plus the
// per-point remainder band of the GESD test, and classifies flagged points as
// anomalously high or low. For every point,
//
//	IsAnomaly[i]  ⇔  Observed[i] < Lower[i] || Observed[i] > Upper[i]
//
// holds exactly, because the flagger's band carries the median/critical-value
// state of the removal step that decided each point.
func Recompose(dec *models.DecomposedSeries, flags *FlagResult) (*models.AnomalyLabeledSeries, error) {
	n := dec.Len()
	if len(flags.IsAnomaly) != n {
		return nil, errors.NewPipelineError(
			fmt.Sprintf("flag result has %d points, series has %d", len(flags.IsAnomaly), n), nil)
	}

	labeled := &models.AnomalyLabeledSeries{
		DecomposedSeries: *dec,
		IsAnomaly:        make([]bool, n),
		Direction:        make([]models.AnomalyDirection, n),
		Lower:            make([]float64, n),
		Upper:            make([]float64, n),
	}

	for i := 0; i < n; i++ {
		baseline := dec.Trend[i] + dec.Seasonal[i] + flags.Center[i]
		labeled.Lower[i] = baseline - flags.Width[i]
		labeled.Upper[i] = baseline + flags.Width[i]
		labeled.IsAnomaly[i] = flags.IsAnomaly[i]

		switch {
		case !flags.IsAnomaly[i]:
			labeled.Direction[i] = models.DirectionNone
		case dec.Remainder[i] > flags.Center[i]:
			labeled.Direction[i] = models.DirectionHigh
		default:
			labeled.Direction[i] = models.DirectionLow
		}
	}

	return labeled, nil
}
