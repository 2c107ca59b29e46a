package errorhandling

// Classifier evaluates an ordered rule table against a fault. It holds no
// state besides the table and is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over rules. An empty table classifies
// everything to Fallback.
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultClassifier uses DefaultRules.
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules())
}

// Classify returns the outcome of the first matching rule. A panicking rule
// degrades to Fallback. The returned outcome always carries a user message.
func (c *Classifier) Classify(in Input) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = Fallback
		}
	}()
	for _, rule := range c.rules {
		if rule.Match(in) {
			out = rule.Build(in)
			if out.UserMessage == "" {
				out.UserMessage = Fallback.UserMessage
			}
			return out
		}
	}
	return Fallback
}
