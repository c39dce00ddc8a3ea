package grading

// DefaultWeight is the points a correct answer is worth when no weight is configured.
const DefaultWeight = 10.0

// KeyItem is one entry of a test's answer key.
type KeyItem struct {
	QuestionID string
	Correct    string
}

// Answer is a student's choice for one question as received on the wire.
type Answer struct {
	QuestionID string
	Choice     string
}

// ItemResult is the outcome for a single question.
type ItemResult struct {
	QuestionID string
	Selected   string // empty when Answered is false
	Answered   bool
	Correct    string
	IsCorrect  bool
	Points     float64
}

// Outcome is the outcome of scoring a whole answer set.
type Outcome struct {
	CorrectCount   int
	TotalQuestions int
	Score          float64
	MaxScore       float64
	Percentage     float64
	Items          []ItemResult // one per key item, in key order
}

type Option func(*config)

type config struct {
	Weight float64
}

// WithWeight sets the uniform per-question weight. Non-positive values are ignored.
func WithWeight(w float64) Option {
	return func(c *config) {
		if w > 0 {
			c.Weight = w
		}
	}
}

// Scorer grades multiple-choice answer sets against an answer key.
type Scorer struct {
	weight float64
}

func NewScorer(opts ...Option) *Scorer {
	cfg := &config{Weight: DefaultWeight}
	for _, o := range opts {
		o(cfg)
	}
	return &Scorer{weight: cfg.Weight}
}

func (s *Scorer) Weight() float64 { return s.weight }

// Score walks every question of the key, not every submitted answer, so
// unanswered questions count as wrong and answers to foreign questions are
// ignored. Blank entries are dropped and the last answer for a question wins.
func (s *Scorer) Score(key []KeyItem, answers []Answer) Outcome {
	submitted := make(map[string]string, len(answers))
	for _, a := range answers {
		if a.QuestionID == "" || a.Choice == "" {
			continue
		}
		submitted[a.QuestionID] = a.Choice
	}

	out := Outcome{
		TotalQuestions: len(key),
		Items:          make([]ItemResult, 0, len(key)),
	}
	for _, k := range key {
		sel, answered := submitted[k.QuestionID]
		item := ItemResult{
			QuestionID: k.QuestionID,
			Selected:   sel,
			Answered:   answered,
			Correct:    k.Correct,
			IsCorrect:  answered && matchChoice(sel, k.Correct),
		}
		if item.IsCorrect {
			item.Points = s.weight
			out.CorrectCount++
		}
		out.Items = append(out.Items, item)
	}

	out.Score = float64(out.CorrectCount) * s.weight
	out.MaxScore = float64(out.TotalQuestions) * s.weight
	out.Percentage = Percentage(out.Score, out.MaxScore)
	return out
}

// matchChoice is an exact, case-sensitive comparison.
func matchChoice(selected, correct string) bool {
	return correct != "" && selected == correct
}

// Percentage returns score/max*100, or 0 when max is not positive.
func Percentage(score, max float64) float64 {
	if max <= 0 {
		return 0
	}
	return score / max * 100
}
