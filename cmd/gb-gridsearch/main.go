package main

import (
	"GuardBench/internal/attacker"
	"GuardBench/internal/config"
	"GuardBench/internal/gridsearch"
	"GuardBench/internal/notification"
	"GuardBench/internal/progress"
	"GuardBench/internal/store"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	weightsPath := flag.String("attacker-ips", "", "path to the attacker IP weights JSON file")
	catchmentPath := flag.String("catchment", "", "path to the catchment regions JSON file")
	evasionIPs := flag.Int("evasion-ips", 0, "number of attacker source networks the attacker slips into training")
	flag.Parse()

	log.Info("Starting gb-gridsearch...")

	// 1. Load configuration and attacker inputs.
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *weightsPath == "" {
		log.Fatal("Missing required flag -attacker-ips")
	}
	weights, err := attacker.LoadWeights(*weightsPath)
	if err != nil {
		log.Fatalf("Failed to load attacker weights: %v", err)
	}
	log.Info("Attacker weights loaded", "addresses", len(weights))

	var catchment *attacker.Catchment
	if *catchmentPath != "" {
		catchment, err = attacker.LoadCatchment(*catchmentPath)
		if err != nil {
			log.Fatalf("Failed to load catchment model: %v", err)
		}
	}

	// 2. Connect to the traffic store.
	st, err := store.NewClickHouseStore(cfg.Store)
	if err != nil {
		log.Fatalf("Failed to connect to ClickHouse: %v", err)
	}
	defer st.Close()

	// 3. Optional progress events and completion mail.
	var publisher *progress.Publisher
	if cfg.Progress.NATSURL != "" {
		publisher, err = progress.NewPublisher(cfg.Progress.NATSURL, cfg.Progress.Subject)
		if err != nil {
			log.Fatalf("Failed to connect to NATS: %v", err)
		}
		defer publisher.Close()
	}
	var notifier notification.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notification.NewEmailNotifier(cfg.SMTP)
	}

	// 4. Run the sweep until done or interrupted.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := gridsearch.New(cfg, st, weights, catchment, *evasionIPs, publisher, notifier)
	if err := orch.Run(ctx); err != nil {
		log.Fatalf("Grid search failed: %v", err)
	}
	log.Info("Grid search complete.")
}
