package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"psvs-console-be/internal/config"
	"psvs-console-be/internal/dataservice"
	"psvs-console-be/internal/dataservice/remote"
	"psvs-console-be/internal/repository/unitofwork"
	"psvs-console-be/pkg/database"
	"psvs-console-be/pkg/timeline"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rootCmd = &cobra.Command{
		Use:   "timeline-inspect",
		Short: "Inspect a client's conversation timeline",
		Long:  "Loads a client's timeline through the configured data source and prints its groups, indicator and trajectory.",
	}

	showCmd = &cobra.Command{
		Use:   "show [client-id]",
		Short: "Load the timeline once and print it",
		Args:  cobra.ExactArgs(1),
		RunE:  runShow,
	}

	watchCmd = &cobra.Command{
		Use:   "watch [client-id]",
		Short: "Poll the timeline and print indicator changes until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("source", "", "data source: postgres or remote (env DATA_SOURCE)")
	flags.String("url", "", "remote data service base URL (env DATA_SERVICE_URL)")
	flags.String("token", "", "remote data service bearer token (env DATA_SERVICE_TOKEN)")
	flags.String("dsn", "", "postgres connection string (env DB_CONNECTION_STRING)")
	flags.Int("trajectory", 0, "trajectory points to load (env TIMELINE_TRAJECTORY_LIMIT)")
	flags.Bool("all", false, "print messages of collapsed groups too")

	watchCmd.Flags().Duration("interval", 0, "poll interval (env TIMELINE_POLL_INTERVAL_MS)")

	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(watchCmd)

	// Flags win over the environment keys the server uses.
	_ = viper.BindPFlag("DATA_SOURCE", flags.Lookup("source"))
	_ = viper.BindPFlag("DATA_SERVICE_URL", flags.Lookup("url"))
	_ = viper.BindPFlag("DATA_SERVICE_TOKEN", flags.Lookup("token"))
	_ = viper.BindPFlag("DB_CONNECTION_STRING", flags.Lookup("dsn"))
	_ = viper.BindPFlag("TIMELINE_TRAJECTORY_LIMIT", flags.Lookup("trajectory"))
	_ = viper.BindPFlag("all", flags.Lookup("all"))
	_ = viper.BindPFlag("interval", watchCmd.Flags().Lookup("interval"))

	viper.AutomaticEnv()
	viper.SetDefault("DATA_SOURCE", config.DataSourcePostgres)
	viper.SetDefault("DATA_SERVICE_TIMEOUT_SECONDS", 10)
	viper.SetDefault("TIMELINE_TRAJECTORY_LIMIT", 30)
	viper.SetDefault("TIMELINE_POLL_INTERVAL_MS", 3000)
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: Error loading .env file: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newDataService() (timeline.DataService, error) {
	switch source := strings.ToLower(viper.GetString("DATA_SOURCE")); source {
	case config.DataSourceRemote:
		url := viper.GetString("DATA_SERVICE_URL")
		if url == "" {
			return nil, fmt.Errorf("remote source needs --url or DATA_SERVICE_URL")
		}
		timeout := time.Duration(viper.GetInt("DATA_SERVICE_TIMEOUT_SECONDS")) * time.Second
		return remote.NewClient(url, viper.GetString("DATA_SERVICE_TOKEN"), timeout), nil
	case config.DataSourcePostgres:
		dsn := viper.GetString("DB_CONNECTION_STRING")
		if dsn == "" {
			return nil, fmt.Errorf("postgres source needs --dsn or DB_CONNECTION_STRING")
		}
		db, err := database.NewGormDBFromDSN(dsn, false)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return dataservice.NewStore(unitofwork.NewRepositoryFactory(db)), nil
	default:
		return nil, fmt.Errorf("unknown data source %q", source)
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	ds, err := newDataService()
	if err != nil {
		return err
	}

	view := timeline.NewView(args[0], ds, timeline.Options{
		TrajectoryLimit: viper.GetInt("TIMELINE_TRAJECTORY_LIMIT"),
	})
	defer view.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	if err := view.Open(ctx); err != nil {
		return fmt.Errorf("load timeline: %w", err)
	}

	render(cmd.OutOrStdout(), view.State(), viper.GetBool("all"))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ds, err := newDataService()
	if err != nil {
		return err
	}

	interval := viper.GetDuration("interval")
	if interval <= 0 {
		interval = time.Duration(viper.GetInt("TIMELINE_POLL_INTERVAL_MS")) * time.Millisecond
	}

	out := cmd.OutOrStdout()
	w := &watcher{out: out}
	view := timeline.NewView(args[0], ds, timeline.Options{
		PollInterval:    interval,
		TrajectoryLimit: viper.GetInt("TIMELINE_TRAJECTORY_LIMIT"),
		AutoRefresh:     true,
		OnChange:        w.observe,
	})
	defer view.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := view.Open(ctx); err != nil {
		color.New(color.FgYellow).Fprintf(out, "initial load failed, polling continues: %v\n", err)
	}
	color.New(color.FgCyan).Fprintf(out, "watching %s every %s (Ctrl+C to stop)\n", args[0], interval)

	<-ctx.Done()
	return nil
}
