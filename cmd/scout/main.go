package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/scout/internal/artifact"
	"github.com/rahul/scout/internal/extractor"
	"github.com/rahul/scout/internal/gateway"
	"github.com/rahul/scout/internal/governance"
	"github.com/rahul/scout/internal/observability"
	"github.com/rahul/scout/internal/probe"
	"github.com/rahul/scout/internal/session"
	"github.com/rahul/scout/internal/store"
	"github.com/rahul/scout/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig("config.yaml")

	logger := observability.NewLogger()

	var index *store.Store
	if cfg.Memory.Path != "" {
		var err error
		index, err = store.New(cfg.Memory.Path)
		if err != nil {
			log.Fatal(err)
		}
		defer index.Close()
	}

	gate := artifact.NewGate(cfg.App.Workspace)
	gate.Index = index

	policy := governance.NewDefaultStepPolicy()

	// Initialize LLM (using default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	var err error
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}
	if err != nil {
		log.Fatal(err)
	}

	prompts := extractor.NewPromptManager("./prompts")
	intent := extractor.New(llm, prompts)

	engine := session.NewEngine(intent, gate, policy, logger, session.Config{
		UndoDepth:      cfg.Session.UndoDepth,
		ExtractTimeout: time.Duration(cfg.Session.ExtractTimeoutSeconds) * time.Second,
		ProbeTimeout:   time.Duration(cfg.Probe.TimeoutSeconds) * time.Second,
		SessionTTL:     time.Duration(cfg.Session.TTLMinutes) * time.Minute,
	})
	if index != nil {
		engine.Transcript = index
	}

	var pageProbe *probe.Probe
	if cfg.Probe.Enabled {
		pageProbe = probe.New()
		defer pageProbe.Close()
		engine.Probe = pageProbe
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.StartReaper(ctx)

	// Live Resource Dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	if tgCfg, ok := cfg.GetGateway("telegram"); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, engine)
		if err != nil {
			log.Fatal(err)
		}
		go func() {
			if err := tg.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] TELEGRAM GATEWAY ERROR: %v\033[0m", err)
			}
		}()
		defer tg.Stop()
	}

	if dcCfg, ok := cfg.GetGateway("discord"); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, engine)
		if err != nil {
			log.Fatal(err)
		}
		if err := dc.Start(); err != nil {
			log.Printf("\033[91m[ FAIL ] DISCORD GATEWAY ERROR: %v\033[0m", err)
		} else {
			defer dc.Stop()
		}
	}

	// The local chat loop runs in the foreground; closing it (or a
	// signal) shuts everything down.
	cli := gateway.NewCLIGateway(engine)
	cliDone := make(chan struct{})
	go func() {
		defer close(cliDone)
		if err := cli.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("chat loop ended: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
	case <-cliDone:
	}

	observability.CleanupTerminal()
	time.Sleep(200 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] Goodbye.\033[0m")
}
