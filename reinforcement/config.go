package reinforcement

import (
	"context"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// OuterConfig is the kind/def envelope wrapping config documents, so that a
// single file can later carry configs of different kinds.
type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig encodes algorithmic and training parameters outside of
// code: standard RL params (learning rate, gamma, epsilon), the body's
// window parameters, and the run deadline.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `mapstructure:"hyperParams"`
	// Algorithm selects behavioral variants, e.g. eager vs lazy composition.
	Algorithm map[string]string `mapstructure:"algorithm"`
	// TrainingDeadline is a duration describing when to terminate training.
	TrainingDeadline map[string]string `mapstructure:"trainingDeadline"`
}

// HyperParameter is a named scalar parameter.
type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// GetHyperParamOrDefault returns the named param's value, or defaultVal when
// the config does not mention it.
func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// WindowSize returns the frame window length for the stacking body.
func (cfg *TrainingConfig) WindowSize() int {
	return int(cfg.GetHyperParamOrDefault("windowSize", 4))
}

// RecordEvery returns the episode interval at which frames are persisted;
// zero disables recording.
func (cfg *TrainingConfig) RecordEvery() int {
	return int(cfg.GetHyperParamOrDefault("recordEvery", 0))
}

// BufferCapacity returns the replay buffer's transition capacity.
func (cfg *TrainingConfig) BufferCapacity() int {
	return int(cfg.GetHyperParamOrDefault("bufferCapacity", 20000))
}

// LazyComposition reports whether bodies should emit lazy composite states.
func (cfg *TrainingConfig) LazyComposition() bool {
	return cfg.Algorithm["composition"] == "lazy"
}

// WithTrainingDeadline returns a context extended by the training deadline,
// if one is specified.
func (cfg *TrainingConfig) WithTrainingDeadline(
	ctx context.Context,
) (context.Context, context.CancelFunc, error) {
	if val, ok := cfg.TrainingDeadline["duration"]; ok {
		duration, err := time.ParseDuration(val)
		if err != nil {
			return nil, nil, err
		}
		innerCtx, cancel := context.WithTimeout(ctx, duration)
		return innerCtx, cancel, nil
	}
	defaultCtx, cancel := context.WithCancel(ctx)
	return defaultCtx, cancel, nil
}

// FromYaml loads a TrainingConfig from the kind/def envelope at path.
// The def is unmarshalled by round-tripping through yaml, since viper's
// mapstructure decode of nested arbitrary documents is awkward to drive
// directly.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, err
	}

	var def []byte
	if def, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := &TrainingConfig{}
	if err = yaml.Unmarshal(def, innerConfig); err != nil {
		return nil, err
	}

	return innerConfig, nil
}
