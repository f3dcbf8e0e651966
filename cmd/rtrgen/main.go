package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rtrgen/internal/compose"
	"rtrgen/internal/config"
	"rtrgen/internal/export"
	appLog "rtrgen/internal/log"
	"rtrgen/internal/model"
	"rtrgen/internal/schedule"
	"rtrgen/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	schedule   string
	listen     string
	logLevel   string

	date     string
	platform string
	tone     string
	shuffle  int

	all   bool
	write bool
	ics   string
	serve bool
}

func main() {
	flags := parseFlags()
	appLog.SetLevel(appLog.ParseLevel(flags.logLevel))
	appLog.Info("rtrgen starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI overrides.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.schedule != "" {
		conf.SchedulePath = flags.schedule
	}

	if flags.serve {
		runServe(conf)
		return
	}

	if err := runOnce(conf, flags); err != nil {
		appLog.Error("generation failed", err)
		os.Exit(1)
	}
}

func runServe(conf *config.Config) {
	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := web.StartServer(ctx, conf); err != nil {
		appLog.Error("server exited", err)
		os.Exit(1)
	}
	appLog.Info("rtrgen exiting")
}

// runOnce performs a single generation pass: load the schedule, select the
// requested run (default: the next one), render and print or write.
func runOnce(conf *config.Config, flags flagConfig) error {
	weekday, err := schedule.ParseWeekday(conf.RunWeekday)
	if err != nil {
		return err
	}

	records, err := schedule.Load(conf.SchedulePath)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
		loc = time.Local
	}

	upcoming, err := schedule.Upcoming(records, time.Now().In(loc), weekday)
	if err != nil {
		return err
	}

	if flags.ics != "" {
		if err := os.WriteFile(flags.ics, []byte(export.BuildICS(conf.ClubName, upcoming)), 0o600); err != nil {
			return fmt.Errorf("write ics: %w", err)
		}
		appLog.Info("calendar export written", "path", flags.ics, "runs", len(upcoming))
		return nil
	}

	rec := upcoming[0]
	if flags.date != "" {
		found := false
		for _, cand := range upcoming {
			if cand.Date.Format("2006-01-02") == flags.date {
				rec = cand
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("no upcoming run on %s", flags.date)
		}
	}

	tone, err := model.ParseTone(flags.tone)
	if err != nil {
		return fmt.Errorf("tone %q: %w", flags.tone, err)
	}

	platforms := []model.Platform{}
	if flags.all {
		platforms = model.Platforms()
	} else {
		p, err := model.ParsePlatform(flags.platform)
		if err != nil {
			return fmt.Errorf("platform %q: %w", flags.platform, err)
		}
		platforms = append(platforms, p)
	}

	opts := compose.Options{
		DefaultMeetingPoint: conf.DefaultMeetingPoint,
		DepartureTime:       conf.DepartureTime,
		BookingURL:          conf.BookingURL,
		CancelURL:           conf.CancelURL,
		Hashtags:            conf.Hashtags,
	}

	for i, platform := range platforms {
		seed := compose.ComposeSeed(rec, platform, tone, flags.shuffle)
		text, err := compose.Render(rec, platform, tone, seed, opts)
		if err != nil {
			return err
		}

		if flags.write {
			path, err := export.WriteMessage(conf.OutputDir, rec, platform, text)
			if err != nil {
				return err
			}
			appLog.Info("message written", "path", path)
			continue
		}

		if i > 0 {
			fmt.Println()
			fmt.Println("----")
			fmt.Println()
		}
		fmt.Println(text)
	}

	return nil
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "rtrgen.yaml", "Path to config file")
	flag.StringVar(&cfg.schedule, "schedule", "", "Schedule CSV path (overrides config if set)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	flag.StringVar(&cfg.date, "date", "", "Run date to generate for, YYYY-MM-DD (default: next run)")
	flag.StringVar(&cfg.platform, "platform", "WhatsApp", "Target platform (WhatsApp, Facebook, Instagram, Email)")
	flag.StringVar(&cfg.tone, "tone", "", "Optional tone (upbeat, lowkey)")
	flag.IntVar(&cfg.shuffle, "shuffle", 0, "Shuffle counter: same value reproduces the same wording")

	flag.BoolVar(&cfg.all, "all", false, "Generate for every platform")
	flag.BoolVar(&cfg.write, "write", false, "Write messages to the output dir instead of stdout")
	flag.StringVar(&cfg.ics, "ics", "", "Write an iCalendar of upcoming runs to this path and exit")
	flag.BoolVar(&cfg.serve, "serve", false, "Run the web preview server")

	flag.Parse()

	return cfg
}
