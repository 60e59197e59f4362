package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test_prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options on a fresh registry", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then metrics should use the default namespace", func() {
				So(manager, ShouldNotBeNil)
				manager.eventsIngested.WithLabelValues("task.created").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				So(names, ShouldContain, "taskpulse_analytics_events_ingested_total")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("ns"),
				WithSubsystem("sub"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then names and const labels should reflect them", func() {
				manager.snapshotUpserts.Inc()
				expected := `
# HELP ns_sub_pre_snapshot_upserts_total Total number of daily snapshot upserts
# TYPE ns_sub_pre_snapshot_upserts_total counter
ns_sub_pre_snapshot_upserts_total{env="test"} 1
`
				err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "ns_sub_pre_snapshot_upserts_total")
				So(err, ShouldBeNil)
			})
		})

		Convey("When metrics are disabled", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry), WithMetricsEnabled(false))

			Convey("Then nothing should be exposed on the given registry", func() {
				So(func() { manager.emitSent.Inc() }, ShouldNotPanic)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				So(families, ShouldBeEmpty)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording ingestion metrics", func() {
			before := testutil.ToFloat64(globalManager.eventsIngested.WithLabelValues("task.updated"))
			RecordEventIngested("task.updated")
			RecordEventIngested("task.updated")

			Convey("Then the counter should advance", func() {
				after := testutil.ToFloat64(globalManager.eventsIngested.WithLabelValues("task.updated"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording purges", func() {
			before := testutil.ToFloat64(globalManager.eventsPurged)
			RecordEventsPurged(5)
			RecordEventsPurged(0)
			RecordEventsPurged(-3)

			Convey("Then only positive counts should be added", func() {
				So(testutil.ToFloat64(globalManager.eventsPurged)-before, ShouldEqual, 5)
			})
		})

		Convey("When recording gauges", func() {
			UpdateEventsStored(42)
			UpdateEmitQueueSize(3)
			UpdateEmitQueueCapacity(10)
			UpdateEmitQueueUtilization(0.3)
			UpdateWorkerActiveCount(4)

			Convey("Then they should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.eventsStored), ShouldEqual, 42)
				So(testutil.ToFloat64(globalManager.emitQueueSize), ShouldEqual, 3)
				So(testutil.ToFloat64(globalManager.emitQueueCapacity), ShouldEqual, 10)
				So(testutil.ToFloat64(globalManager.workerActiveCount), ShouldEqual, 4)
			})
		})

		Convey("When recording the remaining metrics", func() {
			Convey("Then none of them should panic", func() {
				So(func() {
					RecordIngestError("validation")
					RecordAggregationLatency(1.5)
					RecordAggregationFailure()
					RecordSnapshotUpsert()
					RecordStoreLatency("append", 0.4)
					RecordHTTPRequest("summary", "GET", "200")
					RecordHTTPRequestDuration("summary", "GET", "200", 2.0)
					RecordEmitEnqueued("task.created")
					RecordEmitDropped("queue_full")
					RecordEmitSent()
					RecordEmitFailed()
					RecordWorkerProcessingLatency(3.0)
					RecordWorkerError()
					RecordErrorByComponent("emitter", "send_failed")
					RecordErrorByType("server_error", "high")
					RecordErrorByEndpoint("events", "POST", "client_error")
					RecordErrorLatency("http", "server_error", 12.0)
					UpdateSystemMemoryUsage(1 << 20)
					UpdateSystemGoroutineCount(12)
					RecordSystemGCPauseTime(0.2)
				}, ShouldNotPanic)
			})
		})

		Convey("When asking for the registry", func() {
			Convey("Then it should be the custom one", func() {
				So(GetRegistry(), ShouldEqual, customRegistry)
			})
		})
	})
}
