package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/wol-monitor/config"
)

var _ = Describe("Config", func() {
	var (
		tempDir string
		origDir string
	)

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tempDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tempDir)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
		os.RemoveAll(tempDir)
		os.Unsetenv("REDIS_URL")
		os.Unsetenv("PROBE_METHOD")
		os.Unsetenv("MONITOR_INTERVAL")
	})

	Describe("Load", func() {
		Context("with valid config file", func() {
			BeforeEach(func() {
				configContent := `
server:
  address: ":9090"
  environment: "prod"

monitor:
  interval: "10s"
  max_concurrency: 16

probe:
  method: "icmp"
  timeout: "2s"
  retries: 1

cache:
  url: "redis://cache:6379/2"
  online_ttl: "20s"

registry:
  driver: "sqlite"
  dsn: "file:wol.db"

logging:
  level: "debug"
`
				err := os.WriteFile(filepath.Join(tempDir, "config.yaml"), []byte(configContent), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
				Expect(cfg.Server.Address).To(Equal(":9090"))
				Expect(cfg.Server.Environment).To(Equal(config.EnvProd))
			})

			It("should parse durations", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Monitor.Interval).To(Equal(10 * time.Second))
				Expect(cfg.Probe.Timeout).To(Equal(2 * time.Second))
				Expect(cfg.Cache.OnlineTTL).To(Equal(20 * time.Second))
			})

			It("should keep defaults for unset keys", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Cache.OfflineTTL).To(Equal(3 * time.Second))
				Expect(cfg.Registry.Query).To(Equal(config.DefaultHostsQuery))
			})

			It("should let REDIS_URL override the cache url", func() {
				os.Setenv("REDIS_URL", "redis://other:6380/0")
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Cache.URL).To(Equal("redis://other:6380/0"))
			})
		})

		Context("with an explicit path", func() {
			It("should read the given file", func() {
				path := filepath.Join(tempDir, "monitor.yaml")
				Expect(os.WriteFile(path, []byte("probe:\n  method: pinger\n"), 0644)).To(Succeed())

				cfg, err := config.Load(path)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Probe.Method).To(Equal(config.ProbePinger))
			})

			It("should reject inverted cache ttls", func() {
				path := filepath.Join(tempDir, "inverted.yaml")
				content := "cache:\n  online_ttl: 3s\n  offline_ttl: 30s\n"
				Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())

				_, err := config.Load(path)
				Expect(err).To(MatchError(ContainSubstring("must be shorter than online_ttl")))
			})

			It("should fail when the file does not exist", func() {
				_, err := config.Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})

		Context("without a config file", func() {
			It("should use defaults", func() {
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Monitor.Interval).To(Equal(30 * time.Second))
				Expect(cfg.Monitor.RecoveryInterval).To(Equal(5 * time.Second))
				Expect(cfg.Probe.Method).To(Equal(config.ProbeCommand))
				Expect(cfg.Probe.Timeout).To(Equal(1500 * time.Millisecond))
				Expect(cfg.Probe.Retries).To(Equal(2))
				Expect(cfg.Probe.MaxSocketErrors).To(Equal(1))
				Expect(cfg.Cache.Prefix).To(Equal("ping_cache"))
				Expect(cfg.Cache.OnlineTTL).To(Equal(15 * time.Second))
				Expect(cfg.WOL.Port).To(Equal(9))
				Expect(cfg.WOL.MaxAttempts).To(Equal(10))
				Expect(cfg.WOL.Window).To(Equal(5 * time.Minute))
			})

			It("should apply environment overrides", func() {
				os.Setenv("PROBE_METHOD", "icmp")
				os.Setenv("MONITOR_INTERVAL", "45s")
				cfg, err := config.Load("")
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Probe.Method).To(Equal(config.ProbeICMP))
				Expect(cfg.Monitor.Interval).To(Equal(45 * time.Second))
			})

			It("should reject an unknown probe method", func() {
				os.Setenv("PROBE_METHOD", "tcp")
				_, err := config.Load("")
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("Validate", func() {
		var cfg *config.Config

		BeforeEach(func() {
			var err error
			cfg, err = config.Load("")
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject a non-redis cache url", func() {
			cfg.Cache.URL = "http://localhost:6379"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a sub-second online ttl", func() {
			cfg.Cache.OnlineTTL = 500 * time.Millisecond
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject an offline ttl that is not shorter than the online ttl", func() {
			cfg.Cache.OnlineTTL = 10 * time.Second
			cfg.Cache.OfflineTTL = 10 * time.Second
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("must be shorter than online_ttl")))

			cfg.Cache.OfflineTTL = 9 * time.Second
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should require a query for sql registries", func() {
			cfg.Registry.Driver = config.RegistryPostgres
			cfg.Registry.Query = ""
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject an invalid listen address", func() {
			cfg.Server.Address = "invalid:host:port"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a source address that is not IPv4", func() {
			cfg.Probe.Source = "eth0"
			Expect(cfg.Validate()).To(HaveOccurred())

			cfg.Probe.Source = "192.168.1.10"
			Expect(cfg.Validate()).To(Succeed())
		})

		It("should reject a broadcast address that is not IPv4", func() {
			cfg.WOL.Broadcast = "broadcast"
			Expect(cfg.Validate()).To(HaveOccurred())
		})
	})
})
