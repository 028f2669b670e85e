package retry

import (
	"testing"
	"time"

	"github.com/lekhoa/enhanceq/internal/classify"
)

func TestNextDelayProgression(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 3, BaseDelay: 1 * time.Second, MaxDelay: 10 * time.Second})

	expected := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	for i, want := range expected {
		if got := p.NextDelay("k"); got != want {
			t.Errorf("attempt %d: NextDelay = %v, want %v", i, got, want)
		}
		p.RecordAttempt("k")
	}
}

func TestNextDelayMonotonic(t *testing.T) {
	p := NewPolicy(DefaultConfig())

	prev := time.Duration(0)
	for i := 0; i < 10; i++ {
		d := p.NextDelay("k")
		if d < prev {
			t.Fatalf("delay decreased at attempt %d: %v < %v", i, d, prev)
		}
		prev = d
		p.RecordAttempt("k")
	}
}

func TestNextDelayCeiling(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 3, BaseDelay: 1 * time.Second, MaxDelay: 10 * time.Second})

	for i := 0; i < 8; i++ {
		p.RecordAttempt("k")
	}
	if got := p.NextDelay("k"); got != 10*time.Second {
		t.Errorf("NextDelay past ceiling = %v, want 10s", got)
	}
}

func TestCanRetry(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: time.Second})

	if p.CanRetry(classify.InvalidInput, "k") {
		t.Error("non-retryable kind allowed")
	}
	if !p.CanRetry(classify.NetworkError, "k") {
		t.Error("fresh key denied")
	}

	p.RecordAttempt("k")
	p.RecordAttempt("k")
	if p.CanRetry(classify.NetworkError, "k") {
		t.Error("exhausted key allowed")
	}
}

func TestKeysIndependent(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Second})

	p.RecordAttempt("a")
	if p.CanRetry(classify.NetworkError, "a") {
		t.Error("exhausted key a allowed")
	}
	if !p.CanRetry(classify.NetworkError, "b") {
		t.Error("unrelated key b denied")
	}
}

func TestReset(t *testing.T) {
	p := NewPolicy(Config{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: time.Second})

	p.RecordAttempt("k")
	p.Reset("k")
	if !p.CanRetry(classify.NetworkError, "k") {
		t.Error("reset key denied")
	}
	if got := p.NextDelay("k"); got != time.Second {
		t.Errorf("NextDelay after reset = %v, want 1s", got)
	}
}
