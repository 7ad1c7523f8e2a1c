package questionnaire

// Rand is the randomness Decorate needs. *math/rand/v2.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// decorateChance is the probability a prompt gets an acknowledgment prefix.
const decorateChance = 0.3

var acknowledgments = []string{
	"Thanks for sharing that.",
	"I appreciate your honesty.",
	"Understood.",
	"That's helpful to know.",
}

// Decorate returns q, sometimes with its prompt prefixed by a short
// acknowledgment of the previous answer. Only the returned copy's Prompt can
// differ; the catalog entry, id and options are never touched. Nothing
// happens when prevAnswer is empty or rng is nil.
func Decorate(q Question, prevAnswer string, rng Rand) Question {
	out := q.clone()
	if prevAnswer == "" || rng == nil {
		return out
	}
	if rng.Float64() <= 1-decorateChance {
		return out
	}
	out.Prompt = acknowledgments[rng.IntN(len(acknowledgments))] + " " + q.Prompt
	return out
}
