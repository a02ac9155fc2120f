package tokens

import "testing"

func TestCount(t *testing.T) {
	estimator, err := NewEstimator()
	if err != nil {
		t.Fatalf("NewEstimator() error = %v", err)
	}

	t.Run("empty text", func(t *testing.T) {
		count, err := estimator.Count("")
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count != 0 {
			t.Errorf("Count(\"\") = %d, want 0", count)
		}
	})

	t.Run("non-empty text", func(t *testing.T) {
		count, err := estimator.Count("What is the return policy?")
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if count == 0 {
			t.Error("Count() = 0 for non-empty text, want > 0")
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		first, err := estimator.Count("hello world")
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		second, err := estimator.Count("hello world")
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if first != second {
			t.Errorf("Count() = %d then %d for the same input", first, second)
		}
	})
}
