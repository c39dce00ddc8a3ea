package grading

// Summary aggregates the completed scores of one test.
type Summary struct {
	TotalSubmissions int64   `json:"totalSubmissions"`
	HighestScore     float64 `json:"highestScore"`
	LowestScore      float64 `json:"lowestScore"`
	AverageScore     float64 `json:"averageScore"`
	MaxScore         float64 `json:"maxScore"`
	CompletionRate   float64 `json:"completionRate"` // percent of enrolled students
}

// Summarize computes min/max/avg over scores. enrolled is the class size
// used for the completion rate; maxScore is reported as given.
func Summarize(scores []float64, maxScore float64, enrolled int) Summary {
	s := Summary{TotalSubmissions: int64(len(scores)), MaxScore: maxScore}
	if len(scores) == 0 {
		return s
	}
	s.HighestScore = scores[0]
	s.LowestScore = scores[0]
	total := 0.0
	for _, v := range scores {
		if v > s.HighestScore {
			s.HighestScore = v
		}
		if v < s.LowestScore {
			s.LowestScore = v
		}
		total += v
	}
	s.AverageScore = total / float64(len(scores))
	if enrolled > 0 {
		s.CompletionRate = float64(len(scores)) / float64(enrolled) * 100
	}
	return s
}
