// Package di wires infrastructure adapters to the task runner.
package di

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/softlight/wayfinder/internal/application/port/input"
	"github.com/softlight/wayfinder/internal/application/port/output"
	"github.com/softlight/wayfinder/internal/config"
	"github.com/softlight/wayfinder/internal/infrastructure/browser/rod"
	"github.com/softlight/wayfinder/internal/infrastructure/env"
	"github.com/softlight/wayfinder/internal/infrastructure/llm/openaiclient"
	"github.com/softlight/wayfinder/internal/infrastructure/tracestore"
	"github.com/softlight/wayfinder/internal/usecase/orchestrator"
)

type Container struct {
	Env        *env.Service
	Browser    output.BrowserPort
	Serializer output.SerializerPort
	Oracle     output.OraclePort
	Stores     output.TraceStoreFactory
	TaskRunner input.TaskRunner

	log *zap.Logger
}

// New assembles the full dependency graph from configuration. The
// browser launches eagerly so startup failures surface before any run
// begins.
func New(cfg *config.Config, log *zap.Logger) (*Container, error) {
	envSvc := env.New(log)

	apiKey := envSvc.APIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key configured (set WAYFINDER_API_KEY)")
	}

	browserCfg := rod.Config{
		Headless:      cfg.Browser.Headless,
		SlowMotion:    cfg.Browser.SlowMotion,
		ActionTimeout: cfg.Browser.ActionTimeout,
		NavTimeout:    cfg.Browser.NavTimeout,
		ViewportW:     cfg.Browser.ViewportW,
		ViewportH:     cfg.Browser.ViewportH,
		NoSandbox:     true,
	}
	browser, err := rod.New(browserCfg, log)
	if err != nil {
		return nil, fmt.Errorf("create browser: %w", err)
	}

	oracleCfg := openaiclient.DefaultConfig(apiKey, cfg.LLM.Model)
	if cfg.LLM.BaseURL != "" {
		oracleCfg.BaseURL = cfg.LLM.BaseURL
	}
	if cfg.LLM.Temperature > 0 {
		oracleCfg.Temperature = cfg.LLM.Temperature
	}
	if cfg.LLM.MaxTokens > 0 {
		oracleCfg.MaxTokens = cfg.LLM.MaxTokens
	}
	if cfg.LLM.RequestTimeout > 0 {
		oracleCfg.RequestTimeout = cfg.LLM.RequestTimeout
	}
	if cfg.LLM.MaxRetries > 0 {
		oracleCfg.MaxRetries = uint64(cfg.LLM.MaxRetries)
	}
	oracle := openaiclient.New(oracleCfg, log)

	stores := tracestore.NewFactory(cfg.Run.OutputDir, log)

	runner := orchestrator.New(browser, browser, oracle, envSvc, stores, orchestrator.Config{
		FailureLimit:  cfg.Run.FailureLimit,
		LoopWindow:    cfg.Run.LoopWindow,
		HistoryDepth:  cfg.Run.HistoryDepth,
		SettleTimeout: cfg.Browser.SettleTimeout,
	}, log)

	return &Container{
		Env:        envSvc,
		Browser:    browser,
		Serializer: browser,
		Oracle:     oracle,
		Stores:     stores,
		TaskRunner: runner,
		log:        log,
	}, nil
}

func (c *Container) Close() {
	if c.Browser != nil {
		c.Browser.Close()
	}
}
