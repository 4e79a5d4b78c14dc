package session

// Performance messages shown on the game-over screen.
const (
	TierExcellent      = "Excellent!"
	TierGoodJob        = "Good Job!"
	TierNotBad         = "Not Bad!"
	TierKeepPracticing = "Keep Practicing!"
)

// Percentage returns correct*100/total truncated toward zero, or 0 when total is 0.
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return correct * 100 / total
}

// Tier maps a percentage to its performance message.
func Tier(percentage int) string {
	switch {
	case percentage >= 80:
		return TierExcellent
	case percentage >= 60:
		return TierGoodJob
	case percentage >= 40:
		return TierNotBad
	default:
		return TierKeepPracticing
	}
}
