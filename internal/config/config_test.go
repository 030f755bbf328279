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
		tempDir, err = os.MkdirTemp("", "config-test")
		Expect(err).NotTo(HaveOccurred())
		configFile = filepath.Join(tempDir, "config.yaml")
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	Describe("Load", func() {
		Context("when config file exists with valid content", func() {
			BeforeEach(func() {
				validConfig := `
anomaly:
  threshold_sigma: 2.5
  min_sample_size: 12
  min_spend: 150

rca:
  max_steps: 8
  concurrency: 6

model:
  provider: "anthropic"
  endpoint: "https://api.anthropic.com"
  model: "claude-sonnet"
  timeout: "30s"
  retry_count: 3
  temperature: 0.3
  max_tokens: 500

validator:
  retry_max: 3

session:
  ttl_seconds: 1800

probe:
  timeout_ms: 5000

logging:
  level: "info"
  format: "json"
`
				err := os.WriteFile(configFile, []byte(validConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())

				Expect(cfg.Anomaly.ThresholdSigma).To(Equal(2.5))
				Expect(cfg.Anomaly.MinSampleSize).To(Equal(12))
				Expect(cfg.Anomaly.MinSpend).To(Equal(150.0))

				Expect(cfg.RCA.MaxSteps).To(Equal(8))
				Expect(cfg.RCA.Concurrency).To(Equal(6))

				Expect(cfg.Model.Provider).To(Equal("anthropic"))
				Expect(cfg.Model.Endpoint).To(Equal("https://api.anthropic.com"))
				Expect(cfg.Model.Model).To(Equal("claude-sonnet"))
				Expect(cfg.Model.Timeout.Duration).To(Equal(30 * time.Second))
				Expect(cfg.Model.Temperature).To(Equal(float32(0.3)))
				Expect(cfg.Model.MaxTokens).To(Equal(500))

				Expect(cfg.Validator.RetryMax).To(Equal(3))
				Expect(cfg.Session.TTLSeconds).To(Equal(1800))
				Expect(cfg.Probe.TimeoutMs).To(Equal(5000))

				Expect(cfg.Logging.Level).To(Equal("info"))
				Expect(cfg.Logging.Format).To(Equal("json"))
			})
		})

		Context("when config file has minimal content", func() {
			BeforeEach(func() {
				minimalConfig := `
model:
  provider: "langchain"
  model: "llama-3"
`
				err := os.WriteFile(configFile, []byte(minimalConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load with defaults for missing values", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Model.Provider).To(Equal("langchain"))
				Expect(cfg.Anomaly.ThresholdSigma).To(Equal(2.0))
				Expect(cfg.Anomaly.MinSampleSize).To(Equal(10))
				Expect(cfg.RCA.Concurrency).To(Equal(4))
				Expect(cfg.Validator.RetryMax).To(Equal(2))
				Expect(cfg.Session.TTLSeconds).To(Equal(3600))
			})
		})

		Context("when config file does not exist", func() {
			It("should return an error", func() {
				_, err := Load("/nonexistent/config.yaml")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to read config file"))
			})
		})

		Context("when config file has invalid YAML", func() {
			BeforeEach(func() {
				invalidConfig := `
model:
  provider: "langchain"
  invalid_yaml: [
`
				err := os.WriteFile(configFile, []byte(invalidConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})

		Context("when config has an invalid duration format", func() {
			BeforeEach(func() {
				invalidDurationConfig := `
model:
  provider: "langchain"
  model: "llama-3"
  timeout: "not-a-duration"
`
				err := os.WriteFile(configFile, []byte(invalidDurationConfig), 0644)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an error", func() {
				_, err := Load(configFile)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to parse config file"))
			})
		})
	})

	Describe("validate", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{
				Model: ModelConfig{
					Provider:    "langchain",
					Model:       "llama-3",
					Endpoint:    "http://localhost:8080",
					Timeout:     Duration{30 * time.Second},
					RetryCount:  3,
					Temperature: 0.3,
					MaxTokens:   500,
				},
				RCA: RCAConfig{
					Concurrency: 4,
				},
				Anomaly: AnomalyConfig{
					MinSampleSize: 10,
				},
			}
		})

		Context("when config is valid", func() {
			It("should pass validation", func() {
				Expect(validate(cfg)).NotTo(HaveOccurred())
			})
		})

		Context("when model provider is invalid", func() {
			BeforeEach(func() { cfg.Model.Provider = "invalid" })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("unsupported model provider"))
			})
		})

		Context("when model endpoint is missing", func() {
			BeforeEach(func() { cfg.Model.Endpoint = "" })

			It("should default the endpoint instead of failing", func() {
				Expect(validate(cfg)).NotTo(HaveOccurred())
				Expect(cfg.Model.Endpoint).To(Equal("http://localhost:8080"))
			})
		})

		Context("when model name is missing for langchain", func() {
			BeforeEach(func() { cfg.Model.Model = "" })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("model name is required"))
			})
		})

		Context("when model temperature is out of range", func() {
			BeforeEach(func() { cfg.Model.Temperature = 1.5 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("temperature must be between 0.0 and 1.0"))
			})
		})

		Context("when max tokens is invalid", func() {
			BeforeEach(func() { cfg.Model.MaxTokens = 0 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("max tokens must be greater than 0"))
			})
		})

		Context("when rca concurrency is invalid", func() {
			BeforeEach(func() { cfg.RCA.Concurrency = 0 })

			It("should return a validation error", func() {
				err := validate(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("concurrency must be greater than 0"))
			})
		})
	})

	Describe("loadFromEnv", func() {
		var cfg *Config

		BeforeEach(func() {
			cfg = &Config{}
			os.Clearenv()
		})

		AfterEach(func() {
			os.Clearenv()
		})

		Context("when environment variables are set", func() {
			BeforeEach(func() {
				os.Setenv("MODEL_PROVIDER", "bedrock")
				os.Setenv("MODEL_ENDPOINT", "https://bedrock.example.com")
				os.Setenv("MODEL_NAME", "anthropic.claude-v2")
				os.Setenv("LOG_LEVEL", "debug")
				os.Setenv("ANOMALY_THRESHOLD_SIGMA", "1.8")
			})

			It("should overlay values onto the config", func() {
				Expect(loadFromEnv(cfg)).NotTo(HaveOccurred())

				Expect(cfg.Model.Provider).To(Equal("bedrock"))
				Expect(cfg.Model.Endpoint).To(Equal("https://bedrock.example.com"))
				Expect(cfg.Model.Model).To(Equal("anthropic.claude-v2"))
				Expect(cfg.Logging.Level).To(Equal("debug"))
				Expect(cfg.Anomaly.ThresholdSigma).To(Equal(1.8))
			})
		})

		Context("when no environment variables are set", func() {
			It("should not modify the config", func() {
				original := *cfg
				Expect(loadFromEnv(cfg)).NotTo(HaveOccurred())
				Expect(*cfg).To(Equal(original))
			})
		})
	})

	Describe("credential helpers", func() {
		BeforeEach(func() { os.Clearenv() })
		AfterEach(func() { os.Clearenv() })

		It("reads the warehouse DSN only from its dedicated env var", func() {
			os.Setenv("ADINSIGHT_WAREHOUSE_DSN", "postgres://user@host/db")
			Expect(WarehouseDSN()).To(Equal("postgres://user@host/db"))
		})

		It("reads the model API key only from its dedicated env var", func() {
			os.Setenv("ADINSIGHT_MODEL_API_KEY", "sk-test")
			Expect(ModelAPIKey()).To(Equal("sk-test"))
		})
	})
})
