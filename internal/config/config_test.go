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
		Context("when the file has full content", func() {
			BeforeEach(func() {
				full := `
server:
  webhook_port: "8080"
  metrics_port: "9090"

llm:
  provider: "anthropic"
  endpoint: ""
  model: "claude-haiku"
  timeout: "45s"
  max_tokens: 4096
  task_temperatures:
    insights: 0.35
    patch: 0.2

workflow:
  step_timeout: "90s"
  debug: true

logging:
  level: "debug"
  format: "json"
`
				Expect(os.WriteFile(configFile, []byte(full), 0644)).To(Succeed())
			})

			It("loads every field", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.WebhookPort).To(Equal("8080"))
				Expect(cfg.LLM.Provider).To(Equal("anthropic"))
				Expect(cfg.LLM.Model).To(Equal("claude-haiku"))
				Expect(cfg.LLM.Timeout).To(Equal(45 * time.Second))
				Expect(cfg.LLM.MaxTokens).To(Equal(4096))
				Expect(cfg.Workflow.StepTimeout).To(Equal(90 * time.Second))
				Expect(cfg.Workflow.Debug).To(BeTrue())
				Expect(cfg.Logging.Level).To(Equal("debug"))
			})
		})

		Context("when the file has minimal content", func() {
			BeforeEach(func() {
				minimal := `
llm:
  model: "claude-haiku"
`
				Expect(os.WriteFile(configFile, []byte(minimal), 0644)).To(Succeed())
			})

			It("applies defaults for everything else", func() {
				cfg, err := Load(configFile)
				Expect(err).NotTo(HaveOccurred())

				Expect(cfg.Server.WebhookPort).To(Equal("8080"))
				Expect(cfg.Server.MetricsPort).To(Equal("9090"))
				Expect(cfg.LLM.Provider).To(Equal("anthropic"))
				Expect(cfg.LLM.Timeout).To(Equal(30 * time.Second))
				Expect(cfg.LLM.MaxTokens).To(Equal(2048))
				Expect(cfg.Workflow.StepTimeout).To(Equal(120 * time.Second))
				Expect(cfg.Logging.Level).To(Equal("info"))
				Expect(cfg.Logging.Format).To(Equal("json"))
			})
		})

		Context("when the file does not exist", func() {
			It("returns an error", func() {
				_, err := Load(filepath.Join(tempDir, "missing.yaml"))
				Expect(err).To(HaveOccurred())
			})
		})
	})

	Describe("LLMConfig.TemperatureFor", func() {
		It("uses the compiled-in per-task default", func() {
			cfg := &LLMConfig{}
			Expect(cfg.TemperatureFor(TaskInsights)).To(Equal(float32(0.35)))
			Expect(cfg.TemperatureFor(TaskPatch)).To(Equal(float32(0.2)))
		})

		It("falls back to 0.3 for an unknown task", func() {
			cfg := &LLMConfig{}
			Expect(cfg.TemperatureFor(TaskKind("unknown"))).To(Equal(float32(0.3)))
		})

		It("prefers a configured override", func() {
			cfg := &LLMConfig{TaskTemperatures: map[TaskKind]float32{TaskInsights: 0.5}}
			Expect(cfg.TemperatureFor(TaskInsights)).To(Equal(float32(0.5)))
		})
	})

	Describe("LLMConfig.ModelFor", func() {
		It("falls back to the default model", func() {
			cfg := &LLMConfig{Model: "claude-haiku"}
			Expect(cfg.ModelFor(TaskBrief)).To(Equal("claude-haiku"))
		})

		It("prefers a per-task override", func() {
			cfg := &LLMConfig{Model: "claude-haiku", TaskModels: map[TaskKind]string{TaskInsights: "claude-sonnet"}}
			Expect(cfg.ModelFor(TaskInsights)).To(Equal("claude-sonnet"))
			Expect(cfg.ModelFor(TaskBrief)).To(Equal("claude-haiku"))
		})
	})
})
