package finder

import "time"

// Features builds the feature vector for an instant: day-of-year,
// minute-of-day, weekday, then the weather numbers in field order. The
// weekday is Monday-based (0..6); when the week starts on Sunday it rotates
// forward by one so Sunday becomes day 0.
func Features(at time.Time, weatherNumbers []float64, sundayFirst bool) []float64 {
	weekday := (int(at.Weekday()) + 6) % 7
	if sundayFirst {
		weekday = (weekday + 1) % 7
	}

	features := make([]float64, 0, 3+len(weatherNumbers))
	features = append(features,
		float64(at.YearDay()),
		float64(at.Hour()*60+at.Minute()),
		float64(weekday),
	)
	return append(features, weatherNumbers...)
}
