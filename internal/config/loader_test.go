package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/spikecurator/internal/config"
	"github.com/okian/spikecurator/internal/domain/project"
	"github.com/smartystreets/goconvey/convey"
)

// configEnv lists every variable Load reads so each case starts clean.
var configEnv = []string{
	config.FileEnv,
	"SPIKE_ADDR", "SPIKE_LOG_LEVEL", "SPIKE_LOG_FORMAT",
	"SPIKE_HEIGHT_THRESHOLD", "SPIKE_PRE_SPIKE_MS", "SPIKE_POST_SPIKE_MS", "SPIKE_REFRACTORY_MS",
	"SPIKE_PROJECTION_POLICY", "SPIKE_ISI_BINS", "SPIKE_ISI_LOG_SCALE",
	"SPIKE_COMMAND_QUEUE_SIZE", "SPIKE_DEDUPE_SIZE",
}

// loadWith runs Load in a subtest environment holding only env. A "yaml"
// key is written to a file and named by SPIKE_CONFIG.
func loadWith(t *testing.T, env map[string]string) (*config.Config, error) {
	t.Helper()
	for _, k := range configEnv {
		if v, ok := os.LookupEnv(k); ok {
			t.Setenv(k, v)
			_ = os.Unsetenv(k)
		}
	}
	for k, v := range env {
		if k == "yaml" {
			path := filepath.Join(t.TempDir(), "spikecurator.yaml")
			if err := os.WriteFile(path, []byte(v), 0o600); err != nil {
				t.Fatalf("write config: %v", err)
			}
			t.Setenv(config.FileEnv, path)
			continue
		}
		t.Setenv(k, v)
	}
	return config.Load(context.Background())
}

func TestLoadLayers(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadWith(t, nil)
		convey.Convey("Given no file and no env", t, func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg, convey.ShouldResemble, config.New())
		})
	})

	t.Run("env", func(t *testing.T) {
		cfg, err := loadWith(t, map[string]string{
			"SPIKE_ADDR":              ":8080",
			"SPIKE_HEIGHT_THRESHOLD":  "0.25",
			"SPIKE_PRE_SPIKE_MS":      "0.4",
			"SPIKE_REFRACTORY_MS":     "2",
			"SPIKE_PROJECTION_POLICY": "fixed",
			"SPIKE_ISI_LOG_SCALE":     "false",
			"SPIKE_LOG_FORMAT":        "json",
		})
		convey.Convey("Given SPIKE_* overrides", t, func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.HeightThreshold, convey.ShouldEqual, 0.25)
			convey.So(cfg.PreSpikeMS, convey.ShouldEqual, 0.4)
			convey.So(cfg.PostSpikeMS, convey.ShouldEqual, 1.5)
			convey.So(cfg.RefractoryMS, convey.ShouldEqual, 2.0)
			convey.So(cfg.Policy(), convey.ShouldEqual, project.PolicyFixed)
			convey.So(cfg.ISILogScale, convey.ShouldBeFalse)
			convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
		})
	})

	t.Run("file then env", func(t *testing.T) {
		cfg, err := loadWith(t, map[string]string{
			"yaml": `
addr: ":9090"
height_threshold: 1.5
post_spike_ms: 2.0
isi_bins: 30
command_queue_size: 16
log_level: debug
`,
			"SPIKE_ADDR": ":8080",
		})
		convey.Convey("Given a YAML file and one env override", t, func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.HeightThreshold, convey.ShouldEqual, 1.5)
			convey.So(cfg.PostSpikeMS, convey.ShouldEqual, 2.0)
			convey.So(cfg.ISIBins, convey.ShouldEqual, 30)
			convey.So(cfg.CommandQueueSize, convey.ShouldEqual, 16)
			convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 1024)
		})
	})
}

func TestLoadFailures(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		kind error
	}{
		{"malformed yaml", map[string]string{"yaml": "invalid: yaml: content: ["}, config.ErrLoadConfig},
		{"missing file", map[string]string{config.FileEnv: "/non/existent/file.yaml"}, config.ErrLoadConfig},
		{"not a number", map[string]string{"SPIKE_PRE_SPIKE_MS": "not_a_number"}, config.ErrLoadConfig},
		{"empty addr", map[string]string{"SPIKE_ADDR": ""}, config.ErrInvalidConfig},
		{"unknown policy", map[string]string{"SPIKE_PROJECTION_POLICY": "sometimes"}, config.ErrInvalidConfig},
		{"unknown format", map[string]string{"SPIKE_LOG_FORMAT": "xml"}, config.ErrInvalidConfig},
		{"zero queue from file", map[string]string{"yaml": "command_queue_size: 0\n"}, config.ErrInvalidConfig},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := loadWith(t, tc.env)
			convey.Convey("Given "+tc.name, t, func() {
				convey.So(errors.Is(err, tc.kind), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	}
}
