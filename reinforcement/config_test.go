package reinforcement

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const testConfig = `
kind: TrainingConfig
def:
  hyperParams:
    - key: epsilon
      val: 0.2
    - key: windowSize
      val: 2
    - key: recordEvery
      val: 10
  algorithm:
    kind: td0
    composition: lazy
  trainingDeadline:
    duration: 250ms
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFromYaml(t *testing.T) {
	Convey("When a training config is loaded", t, func() {
		Convey("When the document is well-formed", func() {
			cfg, err := FromYaml(writeConfig(t, testConfig))
			So(err, ShouldBeNil)

			So(cfg.GetHyperParamOrDefault("epsilon", 0.1), ShouldEqual, 0.2)
			So(cfg.GetHyperParamOrDefault("missing", 0.33), ShouldEqual, 0.33)
			So(cfg.WindowSize(), ShouldEqual, 2)
			So(cfg.RecordEvery(), ShouldEqual, 10)
			So(cfg.BufferCapacity(), ShouldEqual, 20000)
			So(cfg.LazyComposition(), ShouldBeTrue)
		})

		Convey("When the file does not exist", func() {
			_, err := FromYaml(filepath.Join(t.TempDir(), "nope.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestWithTrainingDeadline(t *testing.T) {
	Convey("When a deadline is configured", t, func() {
		cfg, err := FromYaml(writeConfig(t, testConfig))
		So(err, ShouldBeNil)

		ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldBeNil)
		defer cancel()

		deadline, ok := ctx.Deadline()
		So(ok, ShouldBeTrue)
		So(time.Until(deadline), ShouldBeLessThanOrEqualTo, 250*time.Millisecond)
	})

	Convey("When no deadline is configured", t, func() {
		cfg := &TrainingConfig{}
		ctx, cancel, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldBeNil)
		defer cancel()

		_, ok := ctx.Deadline()
		So(ok, ShouldBeFalse)
	})

	Convey("When the duration fails to parse", t, func() {
		cfg := &TrainingConfig{TrainingDeadline: map[string]string{"duration": "yesterday"}}
		_, _, err := cfg.WithTrainingDeadline(context.Background())
		So(err, ShouldNotBeNil)
	})
}
