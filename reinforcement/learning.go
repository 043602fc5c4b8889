// reinforcement implements the training harness: a pool of episode workers,
// each driving its own environment through a frame-stacking body, fanned in
// to a single estimator that applies value updates and archives experience.
// Coordination is simple: workers generate and queue episodes until
// cancellation; the single estimator serializes all weight writes.
package reinforcement

import (
	"context"
	"errors"
	"fmt"
	"log"

	"framestack/body"
	"framestack/frames"
	"framestack/replay"

	channerics "github.com/niceyeti/channerics/channels"
)

// Step is a single time step of experience: act from State, observe Reward,
// land in Successor. The states are the composite states the body emitted,
// possibly lazy.
type Step struct {
	State     body.State
	Action    body.Action
	Reward    float64
	Successor body.State
}

// Episode is a sequence of Steps.
type Episode []Step

// Environment is the collaborator workers drive: it supplies masked states
// and rewards, and consumes actions.
type Environment interface {
	Reset() body.State
	Step(action body.Action) (body.State, float64, error)
	NumActions() int
	Channels() int
}

// EnvFactory builds one environment instance per worker; instances need not
// be safe for concurrent use.
type EnvFactory func() Environment

// EpisodeStats is the per-episode progress snapshot handed to the progress
// hook and ultimately to the monitor views.
type EpisodeStats struct {
	Episode   int
	Steps     int
	Score     float64
	BufferLen int
	Evicted   uint64
}

// ProgressFunc is a callback by which the training method lends progress
// details, while exercising some control over its cancellation to prevent
// blocking. It is synchronous and should complete quickly.
type ProgressFunc func(context.Context, EpisodeStats)

// FrameSink receives composite feature frames for persistence. Recording is
// best-effort: sink failures are logged, never fatal to training.
type FrameSink interface {
	SaveFrame(ctx context.Context, episode, step int, f *frames.Frame) error
}

// journalingSelector interposes between the body and the shared policy to
// capture the composite state each decision was made from; the worker needs
// it to assemble transitions, since the body's contract only returns the
// action.
type journalingSelector struct {
	inner body.ActionSelector
	last  body.State
}

func (j *journalingSelector) Act(state body.State, reward float64) (body.Action, error) {
	j.last = state
	return j.inner.Act(state, reward)
}

// Train runs episode workers and the estimator until ctx is done. The
// estimator applies TD(0) updates to a shared linear policy, pushes every
// transition into buf, and periodically records episode frames to sink (nil
// disables recording). Train blocks for the duration of training.
func Train(
	ctx context.Context,
	newEnv EnvFactory,
	config *TrainingConfig,
	nworkers int,
	buf *replay.Buffer,
	sink FrameSink,
	progressFn ProgressFunc) error {
	if newEnv == nil {
		return errors.New("train requires an environment factory")
	}
	if nworkers < 1 {
		return fmt.Errorf("nworkers must be positive, got %d", nworkers)
	}
	if buf == nil {
		return errors.New("train requires a replay buffer")
	}
	if progressFn == nil {
		progressFn = func(context.Context, EpisodeStats) {}
	}

	// Epsilon: the exploration/exploitation policy param.
	epsilon := config.GetHyperParamOrDefault("epsilon", 0.1)
	// Eta: the learning rate.
	eta := config.GetHyperParamOrDefault("eta", 0.01)
	// Gamma: how much to value future state values.
	gamma := config.GetHyperParamOrDefault("gamma", 0.95)
	size := config.WindowSize()
	recordEvery := config.RecordEvery()

	probe := newEnv()
	policy, err := NewLinearPolicy(probe.NumActions(), size*probe.Channels(), epsilon)
	if err != nil {
		return err
	}

	stackOpts := []body.Option{body.WithSize(size)}
	if config.LazyComposition() {
		stackOpts = append(stackOpts, body.WithLazyStates())
	}

	// Deploy worker agents to generate episodes.
	worker := func(done <-chan struct{}) <-chan *Episode {
		episodes := make(chan *Episode)
		go func() {
			defer close(episodes)

			env := newEnv()
			journal := &journalingSelector{inner: policy}
			stack, err := body.NewFrameStack(journal, stackOpts...)
			if err != nil {
				log.Printf("worker setup failed: %v", err)
				return
			}

			for {
				// done-guard
				select {
				case <-done:
					return
				default:
				}

				episode, err := runEpisode(env, stack, journal)
				if err != nil {
					log.Printf("episode aborted: %v", err)
					return
				}

				select {
				case episodes <- episode:
				case <-done:
					return
				}
			}
		}()
		return episodes
	}

	// Fan in the workers so the single estimator can throttle them by not
	// pulling episodes, which serializes all weight writes.
	workers := make([]<-chan *Episode, nworkers)
	for i := 0; i < nworkers; i++ {
		workers[i] = worker(ctx.Done())
	}
	episodes := channerics.Merge(ctx.Done(), workers...)

	// Estimator: update the policy from each episode, archive the experience,
	// and publish progress. Runs in the caller's goroutine until cancellation
	// drains the workers.
	epCount := 0
	for episode := range episodes {
		ep := *episode
		score := 0.0

		// Propagate value updates backward from the terminal state.
		for i := len(ep) - 1; i >= 0; i-- {
			step := ep[i]
			score += step.Reward

			action, ok := step.Action.(int)
			if !ok {
				return fmt.Errorf("estimator expects int actions, got %T", step.Action)
			}

			x, err := step.State.Features()
			if err != nil {
				return err
			}
			row := x.Row(0)

			target := step.Reward
			if step.Successor != nil && step.Successor.Mask() != 0 {
				sx, err := step.Successor.Features()
				if err != nil {
					return err
				}
				target += gamma * policy.maxValue(sx.Row(0))
			}

			delta := eta * (target - policy.value(action, row))
			policy.update(action, row, delta)

			buf.Push(replay.Transition{
				State:     step.State,
				Action:    step.Action,
				Reward:    step.Reward,
				Successor: step.Successor,
				Done:      step.Successor == nil || step.Successor.Mask() == 0,
			})
		}

		epCount++
		if sink != nil && recordEvery > 0 && epCount%recordEvery == 0 {
			recordEpisode(ctx, sink, epCount, ep)
		}

		progressFn(ctx, EpisodeStats{
			Episode:   epCount,
			Steps:     len(ep),
			Score:     score,
			BufferLen: buf.Len(),
			Evicted:   buf.Evicted(),
		})
	}

	return nil
}

// runEpisode drives one episode through the body. The terminal state is
// still presented to the body (its mask tells the agent the episode ended),
// which also closes out the final step's successor. The body never clears its
// own window, so each episode begins by resetting it alongside the env.
func runEpisode(env Environment, stack *body.FrameStack, journal *journalingSelector) (*Episode, error) {
	episode := Episode{}
	stack.Reset()
	state := env.Reset()
	reward := 0.0

	for {
		action, err := stack.Act(state, reward)
		if err != nil {
			return nil, err
		}
		composite := journal.last
		if n := len(episode); n > 0 && episode[n-1].Successor == nil {
			episode[n-1].Successor = composite
		}

		if state.Mask() == 0 {
			return &episode, nil
		}

		next, r, err := env.Step(action)
		if err != nil {
			return nil, err
		}

		episode = append(episode, Step{
			State:  composite,
			Action: action,
			Reward: r,
		})
		state, reward = next, r
	}
}

func recordEpisode(ctx context.Context, sink FrameSink, episode int, ep Episode) {
	for i, step := range ep {
		f, err := step.State.Features()
		if err != nil {
			log.Printf("record episode %d: %v", episode, err)
			return
		}
		if err := sink.SaveFrame(ctx, episode, i, f); err != nil {
			log.Printf("record episode %d step %d: %v", episode, i, err)
			return
		}
	}
}
