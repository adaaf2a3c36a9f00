package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/wol-monitor/pkg/logger"
)

var _ = Describe("Logger", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("New", func() {
		It("should default to info for invalid level", func() {
			log := logger.New("invalid", false, "dev")
			Expect(log).NotTo(BeNil())
			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeTrue())
			Expect(log.Enabled(ctx, slog.LevelDebug)).To(BeFalse())
		})

		It("should respect debug level", func() {
			log := logger.New("debug", false, "dev")
			Expect(log.Enabled(ctx, slog.LevelDebug)).To(BeTrue())
		})

		It("should respect warn level", func() {
			log := logger.New("warn", false, "dev")
			Expect(log.Enabled(ctx, slog.LevelInfo)).To(BeFalse())
			Expect(log.Enabled(ctx, slog.LevelWarn)).To(BeTrue())
		})

		It("should respect error level", func() {
			log := logger.New("error", false, "dev")
			Expect(log.Enabled(ctx, slog.LevelWarn)).To(BeFalse())
			Expect(log.Enabled(ctx, slog.LevelError)).To(BeTrue())
		})
	})

	Describe("NewWithWriter", func() {
		It("should write JSON in prod", func() {
			var buf bytes.Buffer
			log := logger.NewWithWriter(&buf, "info", false, "prod")
			log.Info("probe finished", slog.String("host", "nas"))

			var record map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &record)).To(Succeed())
			Expect(record["msg"]).To(Equal("probe finished"))
			Expect(record["environment"]).To(Equal("prod"))
			Expect(record["host"]).To(Equal("nas"))
		})

		It("should write text outside prod", func() {
			var buf bytes.Buffer
			log := logger.NewWithWriter(&buf, "info", false, "staging")
			log.Info("tick")
			Expect(buf.String()).To(ContainSubstring("msg=tick"))
			Expect(buf.String()).To(ContainSubstring("environment=staging"))
		})
	})

	Describe("Component", func() {
		It("should tag records with the component name", func() {
			var buf bytes.Buffer
			log := logger.Component(logger.NewWithWriter(&buf, "info", false, "dev"), "scheduler")
			log.Info("started")
			Expect(buf.String()).To(ContainSubstring("component=scheduler"))
		})

		It("should tolerate a nil parent", func() {
			Expect(logger.Component(nil, "cache")).NotTo(BeNil())
		})
	})

	Describe("ParseLevel", func() {
		DescribeTable("level names",
			func(name string, want slog.Level) {
				Expect(logger.ParseLevel(name)).To(Equal(want))
			},
			Entry("debug", "debug", slog.LevelDebug),
			Entry("upper case", "WARN", slog.LevelWarn),
			Entry("warning alias", "warning", slog.LevelWarn),
			Entry("error", " error ", slog.LevelError),
			Entry("unknown", "verbose", slog.LevelInfo),
		)
	})
})
