package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nidhogg/virem/internal/config"
	"github.com/nidhogg/virem/internal/keymat"
	"github.com/nidhogg/virem/internal/session"
	"github.com/nidhogg/virem/internal/sink"
)

func main() {
	_ = godotenv.Load()

	sessionID := flag.String("session", "", "session id (default: fresh random id)")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting VIREM...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/virem.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	key, err := loadKey(cfg.Vault.Key)
	if err != nil {
		logger.Fatal("vault key unavailable", zap.Error(err))
	}

	ctx := context.Background()
	snk, closeSink, err := buildSink(ctx, cfg.Vault, logger)
	if err != nil {
		logger.Fatal("vault sink unavailable", zap.Error(err))
	}
	logger.Info("Vault sink ready", zap.String("sink", cfg.Vault.Sink))

	sess, err := session.New(ctx, cfg, *sessionID, snk, key, logger)
	if err != nil {
		logger.Fatal("failed to start session", zap.Error(err))
	}

	// Graceful shutdown on SIGINT/SIGTERM: persistent sessions save first.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		fmt.Println()
		if err := sess.Close(ctx); err != nil {
			logger.Error("session close failed", zap.Error(err))
		}
		logger.Info("Shutting down VIREM...")
		closeSink()
		os.Exit(0)
	}()

	runLoop(ctx, sess, cfg.Session.Mode, logger)

	if err := sess.Close(ctx); err != nil {
		logger.Error("session close failed", zap.Error(err))
	}
	closeSink()
	logger.Info("Shutting down VIREM...")
}

func runLoop(ctx context.Context, sess *session.Session, mode string, logger *zap.Logger) {
	fmt.Println("VIREM presence session")
	fmt.Printf("Session: %s | Mode: %s\n", sess.ID(), mode)
	fmt.Println("Type 'exit' or 'quit' to leave. Commands: /state, /mood, /save")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			sess.Pulse(time.Now())
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/state" {
			printState(sess)
			continue
		}
		if input == "/mood" {
			score, band := sess.Mood()
			fmt.Printf("Mood: %.3f (%s)\n", score, band)
			continue
		}
		if input == "/save" {
			if err := sess.Save(ctx); err != nil {
				printError("Save failed: %v", err)
			} else {
				fmt.Println("State saved.")
			}
			continue
		}

		obs, err := sess.Observe(ctx, input, time.Now())
		if err != nil {
			printError("Observe failed: %v", err)
			continue
		}
		if len(obs.Events) == 0 {
			fmt.Println("(no emotional signal)")
		}
		for _, e := range obs.Events {
			fmt.Printf("  %s %+0.2f\n", e.Label, e.Intensity)
		}
		fmt.Printf("\033[36m[%s]\033[0m mood %.3f (%s)\n", obs.Dominant, obs.Mood, obs.Band)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		logger.Error("input error", zap.Error(err))
	}
}

func printState(sess *session.Session) {
	snap := sess.Snapshot()
	names := make([]string, 0, len(snap.Weights))
	for name := range snap.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-12s %.4f\n", name, snap.Weights[name])
	}
	fmt.Printf("Dominant: %s\n", sess.Dominant())
}

func loadKey(kc config.KeyConfig) ([]byte, error) {
	switch kc.Source {
	case "env":
		return keymat.FromEnv(kc.Env)
	case "passphrase":
		salt, err := hex.DecodeString(kc.SaltHex)
		if err != nil {
			return nil, fmt.Errorf("decode salt: %w", err)
		}
		return keymat.FromPassphrase(kc.Passphrase, salt)
	default:
		return nil, fmt.Errorf("unknown key source %q", kc.Source)
	}
}

func buildSink(ctx context.Context, vc config.VaultConfig, logger *zap.Logger) (sink.Sink, func(), error) {
	noop := func() {}
	switch vc.Sink {
	case "memory":
		return sink.NewMemorySink(), noop, nil
	case "file":
		s, err := sink.NewFileSink(vc.Dir, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	case "postgres":
		s, err := sink.NewPostgresSink(ctx, vc.Postgres.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "redis":
		ttl := time.Duration(vc.Redis.TTLSec) * time.Second
		s, err := sink.NewRedisSink(ctx, vc.Redis.URL, vc.Redis.Prefix, ttl, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown vault sink %q", vc.Sink)
	}
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
