package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tripcast/weatherbot/internal/agent"
	"github.com/tripcast/weatherbot/internal/audio"
	"github.com/tripcast/weatherbot/internal/chat"
	"github.com/tripcast/weatherbot/internal/nlu"
	"github.com/tripcast/weatherbot/internal/pipeline"
	"github.com/tripcast/weatherbot/internal/sidecar"
	"github.com/tripcast/weatherbot/internal/stt"
	"github.com/tripcast/weatherbot/internal/trace"
	"github.com/tripcast/weatherbot/internal/weather"
	"github.com/tripcast/weatherbot/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	godotenv.Load()
	cfg := loadConfig()

	store, err := sidecar.NewStore(cfg.uploadDir)
	if err != nil {
		slog.Error("upload dir", "error", err)
		os.Exit(1)
	}

	ingestor := audio.NewIngestor(store, audio.NewFFmpegTranscoder(cfg.ffmpegPath), cfg.sampleRate)

	var detector nlu.EntityDetector = nlu.NewProseDetector()
	if cfg.nerURL != "" {
		detector = nlu.NewHTTPDetector(cfg.nerURL, cfg.httpPoolSize)
		slog.Info("using remote entity detector", "url", cfg.nerURL)
	}

	weatherClient := weather.NewClient(cfg.openWeatherKey, cfg.httpPoolSize)
	extractor := nlu.NewExtractor(nlu.ExtractorConfig{
		Detector:       detector,
		Geocoder:       weatherClient,
		ScoreCutoff:    cfg.fuzzyScoreCutoff,
		CandidateLimit: cfg.geocodeLimit,
	})
	travelAgent := agent.New(extractor, weatherClient)

	// LLM backends
	backends := map[string]chat.Generator{}
	if cfg.chatAPIKey != "" {
		backends["openai"] = chat.NewOpenAIGenerator(cfg.chatAPIKey, cfg.llmModel)
	}
	if cfg.ollamaURL != "" {
		backends["ollama"] = chat.NewOllamaGenerator(cfg.ollamaURL, cfg.ollamaModel, cfg.llmMaxTokens, cfg.httpPoolSize)
	}
	llmRouter := pipeline.NewRouter(backends, "openai")

	var responder *chat.Responder
	if gen, err := llmRouter.Route(cfg.llmEngine); err == nil {
		responder = chat.NewResponder(gen)
	} else {
		responder = chat.NewResponder(nil)
		slog.Warn("no llm backend configured, responses disabled")
	}

	var traceStore *trace.Store
	var tracer *trace.Tracer
	if cfg.traceDBURL != "" {
		traceStore, err = trace.Open(cfg.traceDBURL)
		if err != nil {
			slog.Error("trace store", "error", err)
			os.Exit(1)
		}
		tracer = trace.NewTracer(traceStore)
		slog.Info("trace persistence enabled")
	}

	recognizer := stt.NewAzureRecognizer(cfg.azureSpeechKey, cfg.azureSpeechRegion, cfg.httpPoolSize)
	translator := stt.NewAzureTranslator(cfg.azureTranslatorKey, cfg.azureTranslatorRegion, cfg.httpPoolSize)

	pipe := pipeline.New(pipeline.Config{
		Recognizer: recognizer,
		Translator: translator,
		Agent:      travelAgent,
		Responder:  responder,
		Sidecars:   store,
		Tracer:     tracer,
		Languages:  cfg.sttLanguages,
	})

	wsHandler := ws.NewHandler(store, cfg.maxConcurrentStreams)

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		cfg:        cfg,
		store:      store,
		ingestor:   ingestor,
		pipe:       pipe,
		agent:      travelAgent,
		responder:  responder,
		traceStore: traceStore,
		wsHandler:  wsHandler,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: withCORS(mux)}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("gateway starting", "addr", addr, "upload_dir", store.Dir())

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	tracer.Close()
	if traceStore != nil {
		traceStore.Close()
	}
	slog.Info("gateway stopped")
}
