package main

import (
	"github.com/tripcast/weatherbot/internal/env"
)

type config struct {
	port                  string
	uploadDir             string
	azureSpeechKey        string
	azureSpeechRegion     string
	azureTranslatorKey    string
	azureTranslatorRegion string
	openWeatherKey        string
	chatAPIKey            string
	nerURL                string
	llmEngine             string
	llmModel              string
	llmMaxTokens          int
	ollamaURL             string
	ollamaModel           string
	httpPoolSize          int
	sttLanguages          []string
	fuzzyScoreCutoff      int
	geocodeLimit          int
	traceDBURL            string
	maxConcurrentStreams  int
	ffmpegPath            string
	sampleRate            int
}

func loadConfig() config {
	return config{
		port:                  env.Str("GATEWAY_PORT", "8000"),
		uploadDir:             env.Str("UPLOAD_DIR", "uploaded_audio"),
		azureSpeechKey:        env.Str("AZURE_SPEECH_KEY", ""),
		azureSpeechRegion:     env.Str("AZURE_SPEECH_REGION", ""),
		azureTranslatorKey:    env.Str("AZURE_TRANSLATOR_KEY", ""),
		azureTranslatorRegion: env.Str("AZURE_TRANSLATOR_REGION", ""),
		openWeatherKey:        env.Str("OPENWEATHER_API_KEY", ""),
		chatAPIKey:            env.Str("OPENAI_API_KEY", env.Str("GOOGLE_API_KEY", "")),
		nerURL:                env.Str("NER_URL", ""),
		llmEngine:             env.Str("LLM_ENGINE", "openai"),
		llmModel:              env.Str("LLM_MODEL", "gpt-4o-mini"),
		llmMaxTokens:          env.Int("LLM_MAX_TOKENS", 300),
		ollamaURL:             env.Str("OLLAMA_URL", ""),
		ollamaModel:           env.Str("OLLAMA_MODEL", "llama3.2:3b"),
		httpPoolSize:          env.Int("HTTP_POOL_SIZE", 50),
		sttLanguages:          env.List("STT_LANGUAGES", []string{"en-US", "ja-JP"}),
		fuzzyScoreCutoff:      env.Int("FUZZY_SCORE_CUTOFF", 70),
		geocodeLimit:          env.Int("GEOCODE_CANDIDATE_LIMIT", 5),
		traceDBURL:            env.Str("TRACE_DB_URL", ""),
		maxConcurrentStreams:  env.Int("MAX_CONCURRENT_STREAMS", 100),
		ffmpegPath:            env.Str("FFMPEG_PATH", "ffmpeg"),
		sampleRate:            env.Int("SAMPLE_RATE", 16000),
	}
}
