package memory

import (
	"math"
	"testing"
	"time"
)

func TestDecayMultiplier(t *testing.T) {
	halfLife := 30 * 24 * time.Hour

	t.Run("zero age is full strength", func(t *testing.T) {
		if got := DecayMultiplier(0, halfLife); got != 1.0 {
			t.Errorf("DecayMultiplier(0, halfLife) = %v, want 1.0", got)
		}
	})

	t.Run("age equal to half-life halves", func(t *testing.T) {
		got := DecayMultiplier(halfLife, halfLife)
		if math.Abs(got-0.5) > 1e-9 {
			t.Errorf("DecayMultiplier(halfLife, halfLife) = %v, want 0.5", got)
		}
	})

	t.Run("two half-lives quarter", func(t *testing.T) {
		got := DecayMultiplier(2*halfLife, halfLife)
		if math.Abs(got-0.25) > 1e-9 {
			t.Errorf("DecayMultiplier(2*halfLife, halfLife) = %v, want 0.25", got)
		}
	})

	t.Run("non-positive half-life disables decay", func(t *testing.T) {
		if got := DecayMultiplier(halfLife, 0); got != 1.0 {
			t.Errorf("DecayMultiplier(age, 0) = %v, want 1.0", got)
		}
		if got := DecayMultiplier(halfLife, -time.Hour); got != 1.0 {
			t.Errorf("DecayMultiplier(age, negative) = %v, want 1.0", got)
		}
	})

	t.Run("negative age is full strength", func(t *testing.T) {
		if got := DecayMultiplier(-time.Hour, halfLife); got != 1.0 {
			t.Errorf("DecayMultiplier(negative, halfLife) = %v, want 1.0", got)
		}
	})

	t.Run("monotonically decreasing", func(t *testing.T) {
		prev := 1.0
		for days := 1; days <= 365; days += 30 {
			got := DecayMultiplier(time.Duration(days)*24*time.Hour, halfLife)
			if got >= prev {
				t.Fatalf("decay at %d days = %v, not below %v", days, got, prev)
			}
			prev = got
		}
	})
}

func TestDecayMultiplierDays(t *testing.T) {
	got := DecayMultiplierDays(60*24*time.Hour, 60)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("DecayMultiplierDays(60d, 60) = %v, want 0.5", got)
	}
	if got := DecayMultiplierDays(time.Hour, 0); got != 1.0 {
		t.Errorf("DecayMultiplierDays with zero half-life = %v, want 1.0", got)
	}
}
