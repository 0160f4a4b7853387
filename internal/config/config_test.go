package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Config", func() {
	var (
		tempDir    string
		configFile string
	)

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "ingestd-config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("DefaultConfig", func() {
		It("returns the documented defaults", func() {
			cfg := DefaultConfig()
			Expect(cfg.Broker.Prefetch).To(Equal(1024))
			Expect(cfg.Broker.HeartBeat).To(Equal("0,5000"))
			Expect(cfg.Worker.DropDefer).To(BeTrue())
			Expect(cfg.Worker.ReportInterval).To(Equal(3600 * time.Second))
			Expect(cfg.Worker.TelemetryInterval).To(Equal(5 * time.Second))
		})
	})

	Describe("Load", func() {
		Context("when the config file is valid", func() {
			BeforeEach(func() {
				valid := `
broker:
  hosts:
    - "stomp.example.com:61613"
  destination: "/queue/aprs"
  login: "ingest"
  passcode: "secret"

cache:
  addr: "localhost:6379"

database:
  dsn: "ingest:secret@tcp(localhost:3306)/aprs"
`
				Expect(os.WriteFile(configFile, []byte(valid), 0644)).To(Succeed())
			})

			It("loads successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Broker.Destination).To(Equal("/queue/aprs"))
				Expect(cfg.Broker.Hosts).To(ConsistOf("stomp.example.com:61613"))
				Expect(cfg.Database.DSN).To(ContainSubstring("aprs"))
				Expect(cfg.Broker.Prefetch).To(Equal(1024), "default should survive a partial override")
			})
		})

		Context("when the config file does not exist", func() {
			It("returns an error", func() {
				_, err := Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when the config file has invalid YAML", func() {
			BeforeEach(func() {
				invalid := "broker:\n  hosts: [\nlogin: x\n"
				Expect(os.WriteFile(configFile, []byte(invalid), 0644)).To(Succeed())
			})

			It("returns an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = DefaultConfig()
			cfg.Broker.Destination = "/queue/aprs"
			cfg.Broker.Hosts = []string{"stomp.example.com:61613"}
			cfg.Cache.Addr = "localhost:6379"
			cfg.Database.DSN = "dsn"
		})

		It("passes for a valid config", func() {
			Expect(validate(cfg)).To(Succeed())
		})

		It("rejects a missing broker destination", func() {
			cfg.Broker.Destination = ""
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("broker destination is required"))
		})

		It("rejects an empty broker host list", func() {
			cfg.Broker.Hosts = nil
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("at least one broker host is required"))
		})

		It("rejects a non-positive prefetch", func() {
			cfg.Broker.Prefetch = 0
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("prefetch must be greater than 0"))
		})

		It("rejects a missing database dsn", func() {
			cfg.Database.DSN = ""
			err := validate(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database dsn is required"))
		})
	})

	Describe("loadFromEnv", func() {
		BeforeEach(func() {
			os.Clearenv()
		})

		AfterEach(func() {
			os.Clearenv()
		})

		It("overlays environment variables onto the config", func() {
			os.Setenv("BROKER_DESTINATION", "/queue/override")
			os.Setenv("DROP_DEFER", "false")
			os.Setenv("LOG_LEVEL", "debug")

			cfg := DefaultConfig()
			Expect(loadFromEnv(cfg)).To(Succeed())

			Expect(cfg.Broker.Destination).To(Equal("/queue/override"))
			Expect(cfg.Worker.DropDefer).To(BeFalse())
			Expect(cfg.Logging.Level).To(Equal("debug"))
		})

		It("leaves the config untouched when no variables are set", func() {
			cfg := DefaultConfig()
			original := *cfg
			Expect(loadFromEnv(cfg)).To(Succeed())
			Expect(*cfg).To(Equal(original))
		})

		It("returns an error for an invalid DROP_DEFER value", func() {
			os.Setenv("DROP_DEFER", "not-a-bool")
			cfg := DefaultConfig()
			err := loadFromEnv(cfg)
			Expect(err).To(HaveOccurred())
		})
	})
})
