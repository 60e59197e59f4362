package config_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/taskpulse/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with defaults", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.LogFormat, convey.ShouldEqual, "text")
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
			convey.So(cfg.DefaultEventsLimit, convey.ShouldEqual, 50)
			convey.So(cfg.DefaultTimelineDays, convey.ShouldEqual, 7)
			convey.So(cfg.AggregationTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given a default config", t, func() {
		cfg := config.New(context.Background())

		convey.Convey("An unknown driver is invalid", func() {
			cfg.StoreDriver = "mongo"
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("The sqlite driver needs a path", func() {
			cfg.StoreDriver = config.DriverSQLite
			cfg.SQLitePath = ""
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)

			cfg.SQLitePath = "/tmp/x.db"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("The memory driver ignores the path", func() {
			cfg.SQLitePath = ""
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Limits must be positive and ordered", func() {
			cfg.DefaultEventsLimit = 0
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)

			cfg.DefaultEventsLimit = 100
			cfg.MaxEventsLimit = 10
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("Timeline days may default to zero but not exceed the max", func() {
			cfg.DefaultTimelineDays = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)

			cfg.DefaultTimelineDays = 30
			cfg.MaxTimelineDays = 7
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})

		convey.Convey("An unknown log format is invalid", func() {
			cfg.LogFormat = "xml"
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}
