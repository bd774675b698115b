package counters

import "context"

// AnswerRecorder bumps the answered-questions counter after a successful
// completion.
type AnswerRecorder struct {
	store Store
}

func NewAnswerRecorder(store Store) *AnswerRecorder {
	return &AnswerRecorder{store: store}
}

func (r *AnswerRecorder) RecordAnswer(ctx context.Context) error {
	return r.store.Increment(ctx, SevyAIAnswers)
}
