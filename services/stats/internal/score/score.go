// Package score derives the popularity ordering scalar from raw
// interaction counters. The score is a pure weighted sum of the current
// counter values: recomputing it is idempotent and two statistics with
// identical counters always score identically.
package score

// Weights configures the relative worth of each interaction kind.
type Weights struct {
	View    float64
	Like    float64
	Comment float64
}

// DefaultWeights values interactions that require effort (likes, comments)
// above passive views.
func DefaultWeights() Weights {
	return Weights{View: 1, Like: 3, Comment: 2}
}

type Engine struct {
	weights Weights
}

// NewEngine creates a score engine. All-zero weights fall back to defaults
// so a misconfigured service never flattens the ranking to zero.
func NewEngine(w Weights) *Engine {
	if w.View == 0 && w.Like == 0 && w.Comment == 0 {
		w = DefaultWeights()
	}
	return &Engine{weights: w}
}

// Score maps counter state to the ranking scalar.
func (e *Engine) Score(viewCount, likeCount, commentCount int64) float64 {
	return e.weights.View*float64(viewCount) +
		e.weights.Like*float64(likeCount) +
		e.weights.Comment*float64(commentCount)
}
