package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"staywatch/internal/app"
)

func main() {
	var (
		cfgPath      string
		record       bool
		testEvery    time.Duration
		runNow       bool
		runNowWeekly bool
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config json")
	flag.BoolVar(&record, "record", false, "open a visible browser and log visited URLs (selector discovery)")
	flag.DurationVar(&testEvery, "test", 0, "run the daily job on this interval instead of the schedule (e.g. 2m)")
	flag.BoolVar(&runNow, "run-now", false, "queue a daily run immediately on startup")
	flag.BoolVar(&runNowWeekly, "run-now-weekly", false, "queue a weekly run immediately on startup")
	flag.Parse()

	// Secrets come from the environment; a .env beside the binary is honored.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, app.Options{
		TestEvery:    testEvery,
		RunNowDaily:  runNow,
		RunNowWeekly: runNowWeekly,
	})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	if record {
		if err := a.Record(ctx); err != nil {
			fmt.Println("fatal record:", err)
			os.Exit(1)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	_ = a.Stop(context.Background())

	if err := a.Err(); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
