package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"grid-annotator/config"
	app "grid-annotator/internal/application"
	"grid-annotator/internal/container"
)

func main() {
	os.Exit(run())
}

func run() int {
	input := flag.String("input", "", "input video or image directory (overrides INPUT_PATH)")
	output := flag.String("output", "", "output video (overrides OUTPUT_PATH)")
	history := flag.Int("history", 0, "print the last N runs and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	if *input != "" {
		cfg.InputPath = *input
	}
	if *output != "" {
		cfg.OutputPath = *output
	}

	if *history == 0 {
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid config: %v", err)
		}
	}

	log, err := cfg.NewLogger()
	if err != nil {
		logrus.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Собираем адаптеры и сервисы приложения
	var appContainer *container.Container
	if *history > 0 {
		appContainer, err = container.NewHistory(cfg, log)
	} else {
		appContainer, err = container.New(ctx, cfg, log)
	}
	if err != nil {
		log.WithError(err).Error("Failed to build application")
		return 1
	}
	defer func() {
		if err := appContainer.Close(); err != nil {
			log.WithError(err).Warn("Failed to release resources")
		}
	}()

	if *history > 0 {
		return printHistory(ctx, appContainer.RunService, *history, log)
	}

	appContainer.RunService.Report = os.Stdout
	if _, err := appContainer.RunService.Execute(ctx, cfg.InputPath, cfg.OutputPath); err != nil {
		return 1
	}
	return 0
}

func printHistory(ctx context.Context, runs *app.RunService, limit int, log logrus.FieldLogger) int {
	list, err := runs.History(ctx, limit)
	if err != nil {
		log.WithError(err).Error("Failed to read run history")
		return 1
	}
	for _, r := range list {
		fmt.Println(app.FormatSummary(r))
	}
	return 0
}
