package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"purple/internal/actions"
	"purple/internal/assistant"
	"purple/internal/audio"
	"purple/internal/bus"
	"purple/internal/catalog"
	"purple/internal/intent"
	"purple/internal/mixer"
	"purple/internal/proxy"
	"purple/internal/router"
	"purple/internal/settings"
	"purple/internal/speech"
	"purple/internal/tts"
	"purple/pkg/stt"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address, empty for direct")
	modelPath := cli.StringP("model", "m", "models/ggml-base.en.bin", "Whisper model path")
	replayDir := cli.String("replay", "", "Directory of recorded clips to use instead of the microphone")
	input := cli.StringP("input", "i", string(assistant.ModeAsk), "Input mode: voice, text or ask")
	settingsPath := cli.String("settings", settings.DefaultPath, "Settings file")
	catalogPath := cli.String("catalog", "catalog.yaml", "Applications, sites and schedule")
	intentsPath := cli.String("intents", "intents.json", "Conversational intents")
	voice := cli.String("voice", "en", "espeak-ng voice")
	stayAfterSearch := cli.Bool("stay-after-search", false, "Keep the session open after opening a search")
	duck := cli.Bool("duck", true, "Lower other audio while listening")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	mode, err := assistant.ParseMode(*input)
	if err != nil {
		log.Error("Bad input mode", "err", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := settings.NewStore(*settingsPath)
	prefs := store.Load()
	log.Debug("Loaded settings", "path", store.Path(), "settings", prefs)

	cat, err := catalog.Load(*catalogPath)
	if err != nil {
		log.Error("Failed to load catalog", "path", *catalogPath, "err", err)
		os.Exit(1)
	}

	httpClient, err := proxy.NewClient(*proxyAddr)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", *proxyAddr, "err", err)
		os.Exit(1)
	}

	doc, err := intent.LoadIntents(*intentsPath)
	if err != nil {
		log.Warn("No intents loaded", "path", *intentsPath, "err", err)
		doc = &intent.Intents{}
	}

	speaker := tts.NewEspeak()
	speaker.Language = *voice

	handlers := actions.New(actions.Config{
		Catalog:  cat,
		Store:    store,
		Settings: prefs,
		Prober:   settings.HTTPProber{Client: httpClient},
		Client:   httpClient,
	}, speaker)

	r := router.New(router.Config{
		Catalog:         cat,
		Settings:        prefs,
		Classifier:      newClassifier(httpClient, doc),
		Intents:         doc,
		StayAfterSearch: *stayAfterSearch,
	}, handlers)

	var rec speech.Recognizer
	if mode != assistant.ModeText {
		var release func()
		rec, release, err = newRecognizer(*modelPath, *replayDir)
		if err != nil {
			log.Warn("Voice input unavailable", "err", err)
		} else {
			defer release()
		}
	}

	var opts []assistant.Option
	if *duck {
		opts = append(opts, assistant.WithDucker(mixer.NewDucker(mixer.New(), []string{"purple", "espeak-ng", "eSpeak"}, 10)))
	}
	if url := os.Getenv("BUS_URL"); url != "" {
		b, err := bus.Dial(ctx, url, "purple")
		if err != nil {
			log.Warn("Bus unavailable", "url", url, "err", err)
		} else {
			defer b.Close()
			opts = append(opts, assistant.WithPublisher(b))
		}
	}

	log.Info("Boot up - successful")

	svc := assistant.New(assistant.Config{Mode: mode, In: os.Stdin, Out: os.Stdout}, rec, r, handlers, opts...)
	if err := svc.Run(ctx); err != nil {
		log.Error("Assistant failed", "err", err)
		os.Exit(1)
	}
}

func newClassifier(httpClient *http.Client, doc *intent.Intents) intent.Classifier {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		log.Debug("Loaded API Key")
		client := openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(httpClient),
		)
		return intent.NewOpenAI(client, doc)
	}
	if len(doc.Intents) > 0 {
		log.Info("OPENAI_API_KEY not set, using keyword classifier")
		return intent.NewKeywords(doc)
	}
	log.Warn("No classifier available, conversational replies disabled")
	return intent.Unavailable{}
}

func newRecognizer(modelPath, replayDir string) (speech.Recognizer, func(), error) {
	var (
		src     speech.Source
		release = func() {}
	)
	if replayDir != "" {
		r, err := audio.NewReplay(replayDir)
		if err != nil {
			return nil, nil, err
		}
		src = r
	} else {
		mic := audio.NewMicrophone()
		if err := mic.Init(); err != nil {
			return nil, nil, fmt.Errorf("init audio: %w", err)
		}
		src, release = mic, mic.Close
	}

	whisper, err := stt.NewTranscriber(modelPath, stt.Options{})
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("init whisper: %w", err)
	}

	return &speech.Adapter{Source: src, Transcriber: whisper}, func() {
		whisper.Close()
		release()
	}, nil
}
