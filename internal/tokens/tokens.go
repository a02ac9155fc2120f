// Package tokens estimates token counts for outgoing query text.
package tokens

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator counts tokens with the cl100k_base encoding. The backend's
// generation model is not exposed to the client, so this is an estimate for
// observability, not billing.
type Estimator struct {
	codec tokenizer.Codec
}

// NewEstimator creates an Estimator.
func NewEstimator() (*Estimator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer encoding: %w", err)
	}
	return &Estimator{codec: codec}, nil
}

// Count returns the token count of text.
func (e *Estimator) Count(text string) (int, error) {
	ids, _, err := e.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("failed to tokenize text: %w", err)
	}
	return len(ids), nil
}
