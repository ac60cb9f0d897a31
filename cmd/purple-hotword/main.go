package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"purple/internal/audio"
	"purple/internal/hotword"
	"purple/internal/ipc"
	"purple/internal/notify"
	"purple/internal/speech"
	"purple/internal/supervisor"
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
	modelPath := cli.StringP("model", "m", "models/ggml-base.en.bin", "Whisper model path")
	replayDir := cli.String("replay", "", "Directory of recorded clips to use instead of the microphone")
	chimePath := cli.String("chime", "beep.mp3", "Cue played on hotword, empty to disable")
	socket := cli.StringP("socket", "s", ipc.SocketPath, "Control socket path")
	phrase := cli.String("hotword", hotword.DefaultHotword, "Hotword phrase")
	cooldown := cli.Duration("cooldown", hotword.DefaultCooldown, "Pause after every trigger")
	assistantPath := cli.StringP("assistant", "a", "", "Assistant binary (default: purple next to this binary)")
	terminal := cli.StringP("terminal", "t", "", `Terminal wrapper for the assistant, e.g. "x-terminal-emulator -e"`)
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	godotenv.Load(*envFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rec, closeRec, err := newRecognizer(*modelPath, *replayDir)
	if err != nil {
		log.Error("Failed to init recognizer", "err", err)
		os.Exit(1)
	}
	defer closeRec()

	log.Debug("Loaded recognizer")

	path := *assistantPath
	if path == "" {
		path = siblingBinary("purple")
	}
	cmd := supervisor.Command{
		Path:     path,
		Args:     cli.Args(),
		Terminal: strings.Fields(*terminal),
	}

	var opts []hotword.Option
	if *chimePath != "" {
		opts = append(opts, hotword.WithChime(notify.NewChime(*chimePath).Play))
	}

	listener := hotword.New(hotword.Config{
		Hotword:  *phrase,
		Command:  cmd,
		Cooldown: *cooldown,
	}, rec, supervisor.New(), opts...)

	srv, err := ipc.Listen(*socket, func(ctx context.Context, msg ipc.ControlMessage) ipc.Reply {
		return control(ctx, listener, msg)
	})
	if err != nil {
		log.Warn("Control socket unavailable", "path", *socket, "err", err)
	} else {
		go func() {
			if err := srv.Serve(ctx); err != nil {
				log.Warn("Control socket stopped", "err", err)
			}
		}()
	}

	log.Info("Boot up - successful", "assistant", cmd.Argv())

	if err := listener.Run(ctx); err != nil {
		log.Error("Hotword listener failed", "err", err)
		os.Exit(1)
	}
}

func control(ctx context.Context, l *hotword.Listener, msg ipc.ControlMessage) ipc.Reply {
	switch msg.Cmd {
	case "trigger":
		log.Info("Triggered over control socket")
		pause := l.Trigger(ctx)
		return ipc.Reply{OK: true, Message: fmt.Sprintf("triggered, cooling down for %s", pause.Round(time.Second))}
	case "status":
		st := l.Status()
		return ipc.Reply{OK: true, Message: fmt.Sprintf("state=%s launches=%d cooldown=%s",
			st.State, st.Launches, st.Cooldown.Round(time.Second))}
	default:
		log.Warn("Unknown command", "cmd", msg.Cmd)
		return ipc.Reply{Message: "unknown command " + msg.Cmd}
	}
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

func siblingBinary(name string) string {
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}
