package reinforcement

import (
	"context"
	"sync"
	"testing"

	"framestack/body"
	"framestack/frames"
	"framestack/replay"

	. "github.com/smartystreets/goconvey/convey"
)

// stubEnv is a deterministic environment: episodes last exactly episodeLen
// steps, each worth unit reward, with a single observation channel counting
// the step index.
type stubEnv struct {
	episodeLen int
	step       int
}

func (e *stubEnv) Reset() body.State {
	e.step = 0
	return e.observe()
}

func (e *stubEnv) Step(action body.Action) (body.State, float64, error) {
	e.step++
	return e.observe(), 1, nil
}

func (e *stubEnv) NumActions() int { return 2 }
func (e *stubEnv) Channels() int   { return 1 }

func (e *stubEnv) observe() body.State {
	mask := 1.0
	if e.step >= e.episodeLen {
		mask = 0
	}
	return body.NewState(frames.MustNew(1, 1, []float64{float64(e.step)}), mask, nil)
}

// collectingSink records which (episode, step) frames were persisted.
type collectingSink struct {
	mu     sync.Mutex
	frames int
}

func (s *collectingSink) SaveFrame(ctx context.Context, episode, step int, f *frames.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	return nil
}

func smokeConfig(lazy bool) *TrainingConfig {
	composition := "eager"
	if lazy {
		composition = "lazy"
	}
	return &TrainingConfig{
		HyperParams: []HyperParameter{
			{Key: "epsilon", Val: 0.5},
			{Key: "windowSize", Val: 2},
			{Key: "recordEvery", Val: 1},
		},
		Algorithm: map[string]string{"kind": "td0", "composition": composition},
	}
}

func TestTrainValidation(t *testing.T) {
	Convey("When train is misconfigured, it fails fast", t, func() {
		buf, err := replay.NewBuffer(8, replay.PolicyFifo)
		So(err, ShouldBeNil)
		factory := func() Environment { return &stubEnv{episodeLen: 3} }

		So(Train(context.Background(), nil, smokeConfig(false), 1, buf, nil, nil), ShouldNotBeNil)
		So(Train(context.Background(), factory, smokeConfig(false), 0, buf, nil, nil), ShouldNotBeNil)
		So(Train(context.Background(), factory, smokeConfig(false), 1, nil, nil, nil), ShouldNotBeNil)
	})
}

func TestTrainSmoke(t *testing.T) {
	for _, lazy := range []bool{false, true} {
		Convey("When training runs briefly", t, func() {
			buf, err := replay.NewBuffer(64, replay.PolicyFifo)
			So(err, ShouldBeNil)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sink := &collectingSink{}
			var finalStats EpisodeStats
			progress := func(ctx context.Context, stats EpisodeStats) {
				finalStats = stats
				if stats.Episode >= 4 {
					cancel()
				}
			}

			err = Train(
				ctx,
				func() Environment { return &stubEnv{episodeLen: 3} },
				smokeConfig(lazy),
				2,
				buf,
				sink,
				progress)
			So(err, ShouldBeNil)

			So(finalStats.Episode, ShouldBeGreaterThanOrEqualTo, 4)
			So(finalStats.Steps, ShouldEqual, 3)
			So(finalStats.Score, ShouldEqual, 3.0)
			So(buf.Len(), ShouldBeGreaterThan, 0)
			sink.mu.Lock()
			So(sink.frames, ShouldBeGreaterThan, 0)
			sink.mu.Unlock()
		})
	}
}

func TestLinearPolicy(t *testing.T) {
	Convey("When a linear policy acts", t, func() {
		Convey("When constructed with bad parameters, it fails fast", func() {
			_, err := NewLinearPolicy(0, 4, 0.1)
			So(err, ShouldNotBeNil)
			_, err = NewLinearPolicy(2, 4, 1.5)
			So(err, ShouldNotBeNil)
		})

		Convey("When greedy, it selects the max-valued action", func() {
			p, err := NewLinearPolicy(2, 2, 0)
			So(err, ShouldBeNil)

			// Make action 1 dominate for positive features.
			p.update(1, []float64{1, 1}, 1.0)

			state := body.NewState(frames.MustNew(1, 2, []float64{1, 1}), 1, nil)
			action, err := p.Act(state, 0)
			So(err, ShouldBeNil)
			So(action, ShouldEqual, 1)
		})

		Convey("When the feature width disagrees, it errors", func() {
			p, err := NewLinearPolicy(2, 4, 0)
			So(err, ShouldBeNil)

			state := body.NewState(frames.MustNew(1, 2, []float64{1, 1}), 1, nil)
			_, err = p.Act(state, 0)
			So(err, ShouldNotBeNil)
		})
	})
}
