package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v2/option"

	"github.com/hubenschmidt/live-interview/internal/backend"
	"github.com/hubenschmidt/live-interview/internal/evaluator"
	"github.com/hubenschmidt/live-interview/internal/interview"
	"github.com/hubenschmidt/live-interview/internal/llm"
	"github.com/hubenschmidt/live-interview/internal/media"
	"github.com/hubenschmidt/live-interview/internal/questions"
	"github.com/hubenschmidt/live-interview/internal/speech"
	"github.com/hubenschmidt/live-interview/internal/store"
	"github.com/hubenschmidt/live-interview/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := openStore(initCtx, cfg.DatabaseURL)
	initCancel()
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	files, err := media.NewStore(cfg.DataDir)
	if err != nil {
		slog.Error("open data dir", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	completer := newCompleter(cfg)
	synth := speech.NewSynthesizer(newSpeechRouter(cfg), cfg.TTSEngine, files, cfg.TTSTimeout)

	sessionCtx, endSessions := context.WithCancel(context.Background())
	loop := interview.NewLoop(interview.Config{
		Store:           st,
		Speech:          synth,
		Evaluator:       evaluator.New(completer, cfg.LLMTimeout),
		Transcripts:     files,
		Spans:           st,
		Budget:          cfg.SessionBudget,
		ReceivePoll:     cfg.ReceivePoll,
		FinalizeTimeout: cfg.FinalizeTimeout,
	})

	wsHandler := ws.NewHandler(sessionCtx, loop, cfg.MaxConcurrentSessions)
	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		store:     st,
		preparer:  questions.NewPreparer(completer, cfg.LLMTimeout),
		wsHandler: wsHandler,
		ttsDir:    files.TTSDir(),
	})

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.FinalizeTimeout+10*time.Second)
		defer cancel()

		// Live interviews are hijacked connections that Shutdown does not
		// wait for; ending them lets each one finalize.
		endSessions()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown", "error", err)
		}
		if err := wsHandler.Wait(ctx); err != nil {
			slog.Warn("sessions still finalizing at shutdown", "error", err)
		}
	}()

	slog.Info("gateway starting",
		"addr", addr,
		"max_concurrent", cfg.MaxConcurrentSessions,
		"budget", cfg.SessionBudget,
		"llm", completer != nil,
		"tts_engine", cfg.TTSEngine,
		"persistent", cfg.DatabaseURL != "",
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-stopped

	slog.Info("gateway stopped")
}

func openStore(ctx context.Context, databaseURL string) (store.Store, error) {
	if databaseURL == "" {
		slog.Warn("DATABASE_URL not set, sessions are kept in memory")
		return store.NewMemory(), nil
	}
	return store.Open(ctx, databaseURL)
}

// newCompleter returns nil when no LLM is configured, in which case question
// preparation and scoring answer with their fallbacks.
func newCompleter(cfg config) llm.Completer {
	if !cfg.llmConfigured() {
		slog.Warn("no LLM configured, using fallback questions and heuristic scores")
		return nil
	}
	httpClient := backend.NewPooledHTTPClient(cfg.LLMPoolSize, cfg.LLMTimeout)

	backends := map[string]llm.Completer{}
	fallback := ""
	if cfg.OllamaURL != "" {
		backends["ollama"] = llm.NewOllama(cfg.OllamaURL, cfg.OllamaModel, cfg.LLMMaxTokens, httpClient)
		fallback = "ollama"
	}
	if cfg.AnthropicAPIKey != "" {
		opts := []anthropicopt.RequestOption{anthropicopt.WithHTTPClient(httpClient), anthropicopt.WithAPIKey(cfg.AnthropicAPIKey)}
		if cfg.AnthropicURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(cfg.AnthropicURL))
		}
		backends["anthropic"] = llm.NewAnthropic(cfg.AnthropicModel, cfg.LLMMaxTokens, opts...)
		fallback = "anthropic"
	}
	if cfg.openAIConfigured() {
		opts := []option.RequestOption{option.WithHTTPClient(httpClient), option.WithAPIKey(cfg.OpenAIAPIKey)}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
		}
		backends["agent"] = llm.NewAgent(llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), cfg.LLMModel, cfg.LLMMaxTokens)
		backends["chat"] = llm.NewChat(cfg.LLMModel, cfg.LLMMaxTokens, 0.7, opts...)
		fallback = "chat"
	}

	router := llm.NewRouter(backends, fallback)
	c, err := router.Select(cfg.LLMEngine)
	if err != nil {
		slog.Error("select llm engine", "engine", cfg.LLMEngine, "error", err)
		return nil
	}
	slog.Info("llm backends", "engines", router.Engines(), "requested", cfg.LLMEngine)
	return c
}

func newSpeechRouter(cfg config) *speech.Router {
	httpClient := backend.NewPooledHTTPClient(cfg.TTSPoolSize, cfg.TTSTimeout)
	backends := map[string]speech.Backend{
		"piper": speech.NewPiper(cfg.PiperURL, cfg.PiperVoice, httpClient),
	}
	if cfg.KokoroURL != "" {
		backends["kokoro"] = speech.NewOpenAICompatible(cfg.KokoroURL, "kokoro", "af_heart", "", httpClient)
	}
	if cfg.OpenAIAPIKey != "" {
		backends["openai"] = speech.NewOpenAICompatible("https://api.openai.com", "tts-1", "alloy", cfg.OpenAIAPIKey, httpClient)
	}
	if cfg.MeloTTSURL != "" {
		backends["melotts"] = speech.NewMelo(cfg.MeloTTSURL, httpClient)
	}
	if cfg.ElevenLabsAPIKey != "" {
		backends["elevenlabs"] = speech.NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID, httpClient)
	}
	router := speech.NewRouter(backends, "piper")
	slog.Info("speech backends", "engines", router.Engines())
	return router
}
