package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	arg "github.com/alexflint/go-arg"
	"github.com/drakos74/case-studies/infra/config"
	"github.com/drakos74/case-studies/internal/metrics"
	"github.com/drakos74/case-studies/internal/storage"
	json_storage "github.com/drakos74/case-studies/internal/storage/file/json"
	"github.com/drakos74/case-studies/internal/study/churn"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

type args struct {
	Config      string `arg:"-c" help:"config file, defaults to infra/config/churn.json"`
	CSV         string `arg:"--csv" help:"customer csv, overrides the config"`
	Out         string `arg:"-o" help:"directory for the rendered charts"`
	Reports     string `arg:"-r" help:"directory for the json reports"`
	MetricsAddr string `arg:"--metrics-addr" help:"expose prometheus metrics on this address"`
	LogLevel    string `arg:"--log-level" default:"info" help:"zerolog level"`
}

func (args) Description() string {
	return "customer churn classification walkthrough"
}

func main() {
	var a args
	arg.MustParse(&a)

	level, err := zerolog.ParseLevel(a.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", a.LogLevel).Msg("invalid log level")
	}
	zerolog.SetGlobalLevel(level)

	var cfg churn.Config
	if a.Config == "" {
		config.MustLoad(churn.Name, &cfg)
	} else if _, err := config.Load(a.Config, &cfg); err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	if a.CSV != "" {
		cfg.CSV = a.CSV
	}
	if a.Out != "" {
		cfg.OutputDir = a.Out
	}
	if a.Reports != "" {
		cfg.ReportDir = a.Reports
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if a.MetricsAddr != "" {
		metrics.Serve(ctx, a.MetricsAddr)
	}

	shard := storage.VoidShard()
	if cfg.ReportDir != "" {
		shard = json_storage.FileShard(cfg.ReportDir)
	}
	store, err := shard("runs")
	if err != nil {
		log.Fatal().Err(err).Msg("could not create report storage")
	}

	study, err := churn.New(cfg, os.Stdout, store)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid study")
	}
	if _, err := study.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("study failed")
	}
}
