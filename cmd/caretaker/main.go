// Command caretaker runs the repository maintenance agent.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"caretaker/pkg/agent"
	"caretaker/pkg/config"
	"caretaker/pkg/forge"
	"caretaker/pkg/llm"
	"caretaker/pkg/logx"
	"caretaker/pkg/metrics"
	"caretaker/pkg/notify"
	"caretaker/pkg/persistence"
)

// Version information, set by the release build via ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var (
		configPath  = flag.String("config", "caretaker.yaml", "Path to the configuration file")
		dbPath      = flag.String("db", "caretaker.db", "Path to the SQLite state database")
		once        = flag.Bool("once", false, "Run a single tick and exit")
		dryRun      = flag.Bool("dry-run", false, "Report actions without performing mutating API calls")
		initSecrets = flag.Bool("init-secrets", false, "Interactively create the encrypted secrets file and exit")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("caretaker %s (%s)\n", version, commit)
		os.Exit(0)
	}

	logger := logx.NewLogger("main")

	home, err := os.UserHomeDir()
	if err != nil {
		logger.Error("Cannot determine home directory: %v", err)
		os.Exit(1)
	}

	if *initSecrets {
		if err := runInitSecrets(home); err != nil {
			logger.Error("Secrets setup failed: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Secrets written to %s\n", config.SecretsFilePath(home))
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config %s: %v", *configPath, err)
		os.Exit(1)
	}
	if *dryRun {
		cfg.DryRun = true
	}

	secrets, err := loadSecrets(home)
	if err != nil {
		logger.Error("Failed to load secrets: %v", err)
		os.Exit(1)
	}

	forgeToken, err := secrets.Get(config.SecretForgeToken)
	if err != nil {
		logger.Error("Forge token unavailable: %v", err)
		os.Exit(1)
	}
	forgeClient := forge.NewClient(cfg.Forge.BaseURL, forgeToken).
		WithTimeout(time.Duration(cfg.Forge.TimeoutSeconds) * time.Second)

	model, err := llm.NewClientFromConfig(cfg.LLM, secrets)
	if err != nil {
		logger.Error("Failed to create model client: %v", err)
		os.Exit(1)
	}

	db, err := persistence.InitializeDatabase(*dbPath)
	if err != nil {
		logger.Error("Failed to open database %s: %v", *dbPath, err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)
	caretaker, err := agent.New(cfg, persistence.NewStore(db), forgeClient, model, notify.NewConsole(cfg.OwnerInbox), recorder)
	if err != nil {
		logger.Error("Failed to build agent: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.StatusAddr != "" {
		go serveStatus(cfg.StatusAddr, caretaker, logger)
	}

	logger.Info("caretaker %s starting: %d repositories, provider=%s, dry_run=%v",
		version, len(cfg.Repositories), cfg.LLM.Provider, cfg.DryRun)

	if *once {
		if _, err := caretaker.Tick(ctx); err != nil {
			logger.Error("Tick failed: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := caretaker.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Agent loop exited: %v", err)
		os.Exit(1)
	}
	logger.Info("Shutdown complete")
}

// serveStatus exposes the agent status snapshot and Prometheus metrics.
func serveStatus(addr string, caretaker *agent.Agent, logger *logx.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(caretaker.Status())
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if caretaker.Status().Healthy {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("degraded"))
	})

	logger.Info("Status server listening on %s", addr)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Status server failed: %v", err)
	}
}

// loadSecrets decrypts the secrets file when present, prompting for its
// password. Without a file, all secrets resolve from the environment.
func loadSecrets(home string) (*config.Secrets, error) {
	if !config.SecretsFileExists(home) {
		return config.NewSecrets(nil), nil
	}
	password, err := promptPassword("Secrets password: ")
	if err != nil {
		return nil, err
	}
	values, err := config.DecryptSecretsFile(home, password)
	if err != nil {
		return nil, err
	}
	return config.NewSecrets(values), nil
}

// runInitSecrets interactively collects tokens and writes the encrypted
// secrets file.
func runInitSecrets(home string) error {
	reader := bufio.NewReader(os.Stdin)
	secrets := make(map[string]string)

	for _, name := range []string{
		config.SecretForgeToken,
		config.SecretAnthropicAPIKey,
		config.SecretOpenAIAPIKey,
		config.SecretGeminiAPIKey,
	} {
		fmt.Printf("%s (empty to skip): ", name)
		value, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		value = strings.TrimSpace(value)
		if value != "" {
			secrets[name] = value
		}
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no secrets entered")
	}

	password, err := promptPassword("Encryption password: ")
	if err != nil {
		return err
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return fmt.Errorf("passwords do not match")
	}
	return config.EncryptSecretsFile(home, password, secrets)
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
