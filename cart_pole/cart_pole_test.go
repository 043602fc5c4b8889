package cart_pole

import (
	"math"
	"math/rand"
	"testing"
)

func TestResetBounds(t *testing.T) {
	env := New(rand.New(rand.NewSource(1)))
	state := env.Reset()

	if state.Mask() != 1 {
		t.Fatalf("expected active mask after reset, got %v", state.Mask())
	}
	f, err := state.Features()
	if err != nil {
		t.Fatalf("features: %v", err)
	}
	if f.Rows() != 1 || f.Cols() != Channels {
		t.Fatalf("expected 1x%d observation, got %dx%d", Channels, f.Rows(), f.Cols())
	}
	for j := 0; j < Channels; j++ {
		if v := math.Abs(f.At(0, j)); v > 0.05 {
			t.Fatalf("channel %d outside initial perturbation range: %v", j, v)
		}
	}
}

func TestStepRejectsBadActions(t *testing.T) {
	env := New(rand.New(rand.NewSource(1)))

	if _, _, err := env.Step("left"); err == nil {
		t.Fatal("expected error for non-int action")
	}
	if _, _, err := env.Step(7); err == nil {
		t.Fatal("expected error for out-of-range action")
	}
}

func TestEpisodeTerminates(t *testing.T) {
	env := New(rand.New(rand.NewSource(42)))
	env.Reset()

	// Constantly pushing one direction must topple the pole well before the
	// step limit.
	for i := 0; i < maxSteps; i++ {
		state, _, err := env.Step(1)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if state.Mask() == 0 {
			if i >= maxSteps-1 {
				t.Fatal("expected early failure, hit the step limit instead")
			}
			return
		}
	}
	t.Fatal("episode never terminated")
}

func TestRewardIsZeroOnFailure(t *testing.T) {
	env := New(rand.New(rand.NewSource(7)))
	env.Reset()

	for i := 0; i < maxSteps; i++ {
		state, reward, err := env.Step(0)
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if state.Mask() == 0 {
			if reward != 0 {
				t.Fatalf("expected zero reward on failure, got %v", reward)
			}
			return
		}
		if reward != 1 {
			t.Fatalf("expected unit reward while balancing, got %v", reward)
		}
	}
	t.Fatal("episode never terminated")
}
