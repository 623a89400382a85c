package channel

import "github.com/mohamedkhairy/squeeze-scanner/internal/models"

// Risk and confidence grading thresholds on the ranked score.
const (
	riskExtremeScore = 80.0
	riskHighScore    = 65.0
	riskMediumScore  = 45.0

	threeStarScore = 75.0
	twoStarScore   = 60.0
)

var riskLadder = []models.RiskLevel{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskExtreme}

// BuildEvent derives the routing event of a ranked item.
func BuildEvent(item models.CacheItem) models.SqueezeEvent {
	return models.SqueezeEvent{
		Ticker:           item.Ticker,
		Score:            item.Score,
		Reversal:         item.Signal.Reversal,
		ReversalStrength: item.Signal.ReversalStrength,
		PositionBias:     item.Signal.PositionBias,
		PositionDelta:    item.Signal.PositionDelta,
		RiskLevel:        RiskLevel(item),
		ConfidenceStars:  ConfidenceStars(item),
	}
}

// RiskLevel grades an item. Extreme funding raises the level one step.
func RiskLevel(item models.CacheItem) models.RiskLevel {
	strong := item.Signal.ReversalStrength == models.StrengthStrong
	level := 0
	switch {
	case item.Score >= riskExtremeScore && strong:
		level = 3
	case item.Score >= riskHighScore:
		level = 2
	case item.Score >= riskMediumScore:
		level = 1
	}
	if item.Signal.FundingExtreme && level < len(riskLadder)-1 {
		level++
	}
	return riskLadder[level]
}

// ConfidenceStars rates an item from one to three stars.
func ConfidenceStars(item models.CacheItem) int {
	strength := item.Signal.ReversalStrength.Rank()
	switch {
	case item.Score >= threeStarScore && strength == models.StrengthStrong.Rank():
		return 3
	case item.Score >= twoStarScore || strength >= models.StrengthMedium.Rank():
		return 2
	default:
		return 1
	}
}
