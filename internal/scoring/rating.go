package scoring

const (
	RatingExcellent        = "Excellent"
	RatingVeryGood         = "Very Good"
	RatingGood             = "Good"
	RatingFair             = "Fair"
	RatingAverage          = "Average"
	RatingNeedsImprovement = "Needs Improvement"
)

type ratingStep struct {
	min   float64
	label string
}

var ladder = []ratingStep{
	{90, RatingExcellent},
	{80, RatingVeryGood},
	{70, RatingGood},
	{60, RatingFair},
	{50, RatingAverage},
}

// Rate maps a final score onto the rating ladder. Thresholds are inclusive.
func Rate(score float64) string {
	for _, step := range ladder {
		if score >= step.min {
			return step.label
		}
	}
	return RatingNeedsImprovement
}
