package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/queryon/queryon/internal/profile"
	"github.com/queryon/queryon/internal/version"
	"github.com/queryon/queryon/server"
	"github.com/queryon/queryon/store"
	"github.com/queryon/queryon/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "queryon",
	Short: `A conversational intake assistant for appointment businesses. Answers customers over web, Telegram and WhatsApp, books appointments and takes orders.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Only load .env for direct binary execution; a systemd unit carries
		// its environment in the unit file.
		if !isRunningAsSystemdService() {
			_ = godotenv.Load()
		}
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:        viper.GetString("mode"),
			Addr:        viper.GetString("addr"),
			Port:        viper.GetInt("port"),
			Data:        viper.GetString("data"),
			Driver:      viper.GetString("driver"),
			DSN:         viper.GetString("dsn"),
			InstanceURL: viper.GetString("instance-url"),
			Version:     version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}
		setupLogger(instanceProfile)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			printDatabaseHint(err, instanceProfile)
			slog.Error("failed to create db driver", "error", err)
			return
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			slog.Error("failed to migrate", "error", err)
			return
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// SIGTERM is what systemd and kubernetes send for a graceful stop;
		// it is also the `kill` default.
		signal.Notify(c, terminationSignals...)

		if err := s.Start(ctx); err != nil {
			slog.Error("failed to start server", "error", err)
			return
		}

		printGreetings(instanceProfile)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		<-ctx.Done()
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "postgres")
	viper.SetDefault("port", 28091)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28091, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "postgres", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name(aka. DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "public url of this instance, used for webhook registration and the feed")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "instance-url"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("queryon")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// setupLogger replaces the default slog handler according to the profile:
// text in dev, JSON in prod, optionally teed into LOG_DIR.
func setupLogger(instanceProfile *profile.Profile) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(instanceProfile.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	out := io.Writer(os.Stdout)
	if instanceProfile.LogDir != "" {
		logPath := filepath.Join(instanceProfile.LogDir, "queryon.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", logPath, err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if instanceProfile.IsDev() {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func printGreetings(instanceProfile *profile.Profile) {
	fmt.Printf("Queryon %s started successfully!\n", instanceProfile.Version)
	fmt.Printf("Mode: %s\n", instanceProfile.Mode)
	fmt.Printf("Database driver: %s\n", instanceProfile.Driver)

	if len(instanceProfile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", instanceProfile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", instanceProfile.Addr, instanceProfile.Port)
	}
	if instanceProfile.InstanceURL != "" {
		fmt.Printf("Instance URL: %s\n", instanceProfile.InstanceURL)
	}
}

// isRunningAsSystemdService detects if the process is running under systemd.
func isRunningAsSystemdService() bool {
	return os.Getenv("INVOCATION_ID") != "" || os.Getenv("WATCHDOG_USEC") != ""
}

// printDatabaseHint turns the most common connection failures into an
// actionable message before the structured error line.
func printDatabaseHint(err error, instanceProfile *profile.Profile) {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		fmt.Fprintln(os.Stderr, "database unreachable: is PostgreSQL running and DATABASE_URL correct?")
		fmt.Fprintln(os.Stderr, "for a local trial without PostgreSQL: --driver=sqlite --data=./data")
	case strings.Contains(msg, "SSL is not enabled") || strings.Contains(msg, "sslmode"):
		fmt.Fprintln(os.Stderr, "ssl mismatch: append ?sslmode=disable to the DSN for local PostgreSQL")
	case strings.Contains(msg, "does not exist") && strings.Contains(msg, "database"):
		fmt.Fprintf(os.Stderr, "database missing: create it first, e.g. CREATE DATABASE queryon;\n")
	case strings.Contains(msg, "password authentication failed"):
		fmt.Fprintln(os.Stderr, "authentication failed: check the credentials in the DSN")
	}
	if instanceProfile.IsDev() {
		if _, statErr := os.Stat(".env"); statErr != nil {
			fmt.Fprintln(os.Stderr, "tip: create a .env file for local configuration")
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
