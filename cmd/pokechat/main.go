// Package main implements the Pokéchat console entry point. It parses
// command-line arguments, wires the session and messaging layers together
// and launches the terminal UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/pokedex-chat/console/internal/app"
	"github.com/pokedex-chat/console/internal/auth"
	"github.com/pokedex-chat/console/internal/chat"
	"github.com/pokedex-chat/console/internal/config"
	"github.com/pokedex-chat/console/internal/content"
	"github.com/pokedex-chat/console/internal/credentials"
	"github.com/pokedex-chat/console/internal/health"
	"github.com/pokedex-chat/console/internal/logging"
	"github.com/pokedex-chat/console/internal/session"
	"github.com/pokedex-chat/console/internal/transport"
)

// Application metadata
const (
	Version     = "1.0.0"
	ProgramName = "Pokéchat Console"
)

// CommandLineArgs represents parsed command-line arguments.
type CommandLineArgs struct {
	Host        string
	Profile     string
	LogLevel    string
	ShowHelp    bool
	ShowVersion bool
}

func main() {
	// A .env file can override host and log level during development.
	_ = godotenv.Load()

	args := parseCommandLineArgs()
	if args.ShowHelp {
		flag.Usage()
		return
	}
	if args.ShowVersion {
		fmt.Printf("%s v%s\n", ProgramName, Version)
		return
	}

	logger := initializeLogging(args)

	if err := run(args, logger); err != nil {
		logger.Error("Application terminated with error", "error", err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("Application shutdown completed")
}

func run(args CommandLineArgs, logger *logging.Logger) error {
	// Configuration and session persistence.
	configManager, err := config.NewManager()
	if err != nil {
		return fmt.Errorf("initializing configuration: %w", err)
	}

	host := args.Host
	if host == "" {
		host = os.Getenv("POKECHAT_HOST")
	}
	if host == "" {
		profileName := args.Profile
		if profileName == "" {
			profileName = "default"
		}
		profile, err := configManager.LoadProfile(profileName)
		if err != nil {
			return fmt.Errorf("loading profile %q: %w", profileName, err)
		}
		host = profile.Host
	}

	// Transport and credential layers.
	httpTransport, err := transport.New(host)
	if err != nil {
		return fmt.Errorf("initializing transport: %w", err)
	}
	credStore := credentials.NewStore(credentials.WithPersistence(configManager))

	// Session controller and the auth interceptor it feeds.
	sessionController := session.NewController(httpTransport, credStore)
	interceptor := auth.NewInterceptor(httpTransport, credStore, sessionController,
		auth.WithExpiryHandler(sessionController.ExpiryHandler()),
	)

	// Conversation client on top of the interceptor; its cache resets on
	// every logout or expiry.
	chatClient := chat.NewClient(interceptor, chat.WithStatePersistence(configManager))
	sessionController.OnLogout(chatClient.Reset)

	// Backend reachability monitor for the status bar.
	monitor := health.NewMonitor(httpTransport)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx, health.DefaultInterval)
	defer monitor.Stop()

	// Try to resume a persisted session before showing the login view.
	startAuthenticated := false
	hydrateCtx, hydrateCancel := context.WithTimeout(ctx, 10*time.Second)
	if profile, err := sessionController.Hydrate(hydrateCtx); err == nil && profile != nil {
		logger.Info("Resumed persisted session", "username", profile.Username)
		startAuthenticated = true
	}
	hydrateCancel()

	controller := app.NewController(
		sessionController,
		chatClient,
		monitor,
		content.NewRenderer(),
		startAuthenticated,
	)

	logger.Info("Starting TUI", "host", host)
	program := tea.NewProgram(controller, tea.WithAltScreen())
	_, err = program.Run()
	return err
}

func parseCommandLineArgs() CommandLineArgs {
	var args CommandLineArgs

	flag.StringVar(&args.Host, "host", "", "Host and port of the Pokéchat backend (e.g., localhost:8000)")
	flag.StringVar(&args.Profile, "profile", "", "Profile name from the configuration file")
	flag.StringVar(&args.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.BoolVar(&args.ShowHelp, "help", false, "Display usage information and exit")
	flag.BoolVar(&args.ShowVersion, "version", false, "Display version information and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", ProgramName, Version)
		fmt.Fprintf(os.Stderr, "A terminal client for the Pokéchat backend.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                         # Connect using the default profile\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --host localhost:8000   # Connect to an explicit host\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nConfiguration file location: ~/.config/pokechat/profiles.yaml\n")
	}

	flag.Parse()
	return args
}

func initializeLogging(args CommandLineArgs) *logging.Logger {
	logConfig := logging.DefaultConfig()

	level := args.LogLevel
	if level == "" {
		level = os.Getenv("POKECHAT_LOG_LEVEL")
	}
	if level != "" {
		logConfig.Level = logging.ParseLevel(level)
	}
	if os.Getenv("POKECHAT_DEBUG") == "true" {
		logConfig.Level = logging.DebugLevel
		logConfig.Format = "json"
	}

	if err := logging.InitGlobalLogger(logConfig); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	logger := logging.GetGlobalLogger()
	logger.Info("Pokéchat console starting", "version", Version)
	return logger
}
