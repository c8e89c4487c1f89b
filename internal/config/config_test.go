package config_test

import (
	"errors"
	"testing"

	"github.com/okian/spikecurator/internal/config"
	"github.com/okian/spikecurator/internal/domain/project"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.PreSpikeMS, convey.ShouldEqual, 0.5)
			convey.So(cfg.PostSpikeMS, convey.ShouldEqual, 1.5)
			convey.So(cfg.RefractoryMS, convey.ShouldEqual, 1.0)
			convey.So(cfg.ISIBins, convey.ShouldEqual, 50)
			convey.So(cfg.ISILogScale, convey.ShouldBeTrue)
			convey.So(cfg.CommandQueueSize, convey.ShouldEqual, 64)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 1024)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
			convey.So(cfg.Policy(), convey.ShouldEqual, project.PolicyRefit)
		})

		convey.Convey("Then the window converts to seconds", func() {
			pre, post, refractory := cfg.Seconds()
			convey.So(pre, convey.ShouldAlmostEqual, 0.5e-3, 1e-15)
			convey.So(post, convey.ShouldAlmostEqual, 1.5e-3, 1e-15)
			convey.So(refractory, convey.ShouldAlmostEqual, 1e-3, 1e-15)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs with out-of-range values", t, func() {
		cases := map[string]func(*config.Config){
			"empty addr":       func(c *config.Config) { c.Addr = "" },
			"negative pre":     func(c *config.Config) { c.PreSpikeMS = -1 },
			"negative post":    func(c *config.Config) { c.PostSpikeMS = -0.1 },
			"negative refract": func(c *config.Config) { c.RefractoryMS = -1 },
			"zero bins":        func(c *config.Config) { c.ISIBins = 0 },
			"zero queue":       func(c *config.Config) { c.CommandQueueSize = 0 },
			"unknown policy":   func(c *config.Config) { c.ProjectionPolicy = "sometimes" },
			"unknown format":   func(c *config.Config) { c.LogFormat = "xml" },
		}
		for name, mutate := range cases {
			cfg := config.New()
			mutate(cfg)

			convey.Convey("Then "+name+" is rejected", func() {
				convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}
	})
}
