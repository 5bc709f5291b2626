// Command promptdeck-sync runs the headless sync agent: it keeps a local
// snapshot file in step with the remote store, listens on the realtime
// channel for pushed changes, and re-pulls on a jittered interval as a
// safety net.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/promptdeck/promptdeck/internal/localstore"
	"github.com/promptdeck/promptdeck/internal/model"
	"github.com/promptdeck/promptdeck/internal/realtime"
	"github.com/promptdeck/promptdeck/internal/remote"
	"github.com/promptdeck/promptdeck/internal/syncer"
)

type fileConfig struct {
	BaseURL   string `yaml:"base_url"`
	WSURL     string `yaml:"ws_url"`
	Token     string `yaml:"token"`
	UserID    string `yaml:"user_id"`
	UserEmail string `yaml:"user_email"`
	State     string `yaml:"state"`
	Interval  string `yaml:"interval"`
}

func main() {
	// A .env next to the binary is convenient in development; absence is
	// not an error.
	_ = godotenv.Load()

	configPath := flag.String("config", strings.TrimSpace(os.Getenv("PROMPTDECK_CONFIG")), "optional YAML config file")
	baseURL := flag.String("base-url", envOrDefault("PROMPTDECK_BASE_URL", "http://127.0.0.1:8080"), "remote store base URL")
	wsURL := flag.String("ws-url", strings.TrimSpace(os.Getenv("PROMPTDECK_WS_URL")), "realtime websocket URL (empty disables realtime)")
	token := flag.String("token", strings.TrimSpace(os.Getenv("PROMPTDECK_TOKEN")), "bearer token")
	userID := flag.String("user", strings.TrimSpace(os.Getenv("PROMPTDECK_USER")), "authenticated user id")
	userEmail := flag.String("user-email", strings.TrimSpace(os.Getenv("PROMPTDECK_USER_EMAIL")), "authenticated user email")
	stateDSN := flag.String("state", strings.TrimSpace(os.Getenv("PROMPTDECK_STATE")), "state DSN (file path, memory://, or postgres://)")
	interval := flag.Duration("interval", durationEnv("PROMPTDECK_INTERVAL", 5*time.Minute), "periodic sync interval")
	intervalJitter := flag.Float64("interval-jitter", floatEnv("PROMPTDECK_INTERVAL_JITTER", 0.2), "sync interval jitter ratio (0.0-1.0)")
	timeout := flag.Duration("timeout", durationEnv("PROMPTDECK_TIMEOUT", 15*time.Second), "per-call HTTP timeout")
	watch := flag.Bool("watch", boolEnv("PROMPTDECK_WATCH", false), "reload the state file when another process writes it")
	once := flag.Bool("once", false, "run one sync cycle and exit")
	flag.Parse()

	if *configPath != "" {
		applyConfigFile(*configPath, map[string]*string{
			"base-url":   baseURL,
			"ws-url":     wsURL,
			"token":      token,
			"user":       userID,
			"user-email": userEmail,
			"state":      stateDSN,
		}, interval)
	}

	if strings.TrimSpace(*token) == "" {
		log.Fatalf("token is required (--token or PROMPTDECK_TOKEN)")
	}
	if strings.TrimSpace(*userID) == "" {
		log.Fatalf("user is required (--user or PROMPTDECK_USER)")
	}
	if strings.TrimSpace(*stateDSN) == "" {
		log.Fatalf("state is required (--state or PROMPTDECK_STATE)")
	}
	if *interval <= 0 {
		*interval = 5 * time.Minute
	}
	if *timeout <= 0 {
		*timeout = 15 * time.Second
	}
	*intervalJitter = clampJitterRatio(*intervalJitter)

	backend, err := localstore.BuildStateBackendFromDSN(*stateDSN)
	if err != nil {
		log.Fatalf("failed to build state backend: %v", err)
	}
	store := localstore.NewManager(localstore.Options{
		Backend: backend,
		Logger:  log.Default(),
	})
	if err := store.Initialize(); err != nil {
		log.Fatalf("failed to initialize local store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("failed to close state backend: %v", err)
		}
	}()

	principal := model.StaticPrincipal{User: &model.User{
		ID:    strings.TrimSpace(*userID),
		Email: strings.TrimSpace(*userEmail),
	}}
	client := remote.NewClient(*baseURL, *token, principal, &http.Client{Timeout: *timeout})
	coordinator := syncer.NewCoordinator(syncer.Options{
		Remote:    client,
		Store:     store,
		Principal: principal,
		Logger:    log.Default(),
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *watch {
		if path, ok := localstore.StateFilePath(*stateDSN); ok {
			watcher, err := localstore.WatchFile(store, path, log.Default())
			if err != nil {
				log.Fatalf("failed to watch state file: %v", err)
			}
			defer watcher.Close()
		} else {
			log.Printf("--watch only applies to file-backed state, ignoring")
		}
	}

	var supervisor *realtime.Supervisor
	if strings.TrimSpace(*wsURL) != "" && !*once {
		supervisor = realtime.NewSupervisor(realtime.Options{
			Dial:      realtime.WebsocketDialer(strings.TrimSpace(*wsURL), *token),
			OnRefresh: coordinator.OnRemoteChange,
			OnOffline: coordinator.MarkOffline,
			Logger:    log.Default(),
		})
		supervisor.Start(rootCtx)
		defer supervisor.Stop()
	}

	run := func() {
		ctx, cancel := context.WithTimeout(rootCtx, *timeout*4)
		defer cancel()
		if err := coordinator.PerformSync(ctx); err != nil {
			log.Printf("sync cycle failed: %v", err)
			return
		}
		log.Printf("sync cycle completed")
	}

	run()
	if *once {
		return
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	timer := time.NewTimer(jitteredIntervalWithSample(*interval, *intervalJitter, rng.Float64()))
	defer timer.Stop()
	for {
		select {
		case <-rootCtx.Done():
			log.Printf("sync agent stopping: %v", rootCtx.Err())
			return
		case <-timer.C:
			if supervisor != nil && supervisor.Status() == realtime.StatusOffline {
				// The periodic pull is the only recovery path once the
				// channel gave up; restart it alongside the pull.
				supervisor.Start(rootCtx)
			}
			run()
			timer.Reset(jitteredIntervalWithSample(*interval, *intervalJitter, rng.Float64()))
		}
	}
}

// applyConfigFile fills in values the flags and environment left empty.
func applyConfigFile(path string, targets map[string]*string, interval *time.Duration) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}
	fromFile := map[string]string{
		"base-url":   cfg.BaseURL,
		"ws-url":     cfg.WSURL,
		"token":      cfg.Token,
		"user":       cfg.UserID,
		"user-email": cfg.UserEmail,
		"state":      cfg.State,
	}
	for name, target := range targets {
		if strings.TrimSpace(*target) == "" && fromFile[name] != "" {
			*target = fromFile[name]
		}
	}
	if cfg.Interval != "" {
		if parsed, err := time.ParseDuration(cfg.Interval); err == nil && parsed > 0 {
			*interval = parsed
		} else {
			log.Printf("invalid interval %q in config file, keeping %s", cfg.Interval, interval.String())
		}
	}
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func durationEnv(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %s", name, raw, fallback.String())
		return fallback
	}
	return value
}

func floatEnv(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %f", name, raw, fallback)
		return fallback
	}
	return value
}

func boolEnv(name string, fallback bool) bool {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using fallback %v", name, raw, fallback)
		return fallback
	}
	return value
}

func clampJitterRatio(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

func jitteredIntervalWithSample(base time.Duration, jitterRatio, sample float64) time.Duration {
	if base <= 0 {
		return 0
	}
	jitterRatio = clampJitterRatio(jitterRatio)
	if jitterRatio == 0 {
		return base
	}
	if sample < 0 {
		sample = 0
	} else if sample > 1 {
		sample = 1
	}
	factor := 1 + ((sample*2)-1)*jitterRatio
	if factor < 0 {
		factor = 0
	}
	delay := time.Duration(float64(base) * factor)
	if delay < time.Millisecond {
		return time.Millisecond
	}
	return delay
}
