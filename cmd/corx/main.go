// Command corx is the per-receiver capture binary of the TDoA array: it
// acquires the reference carrier, detects the beacon, and writes
// phase/time-corrected correlation slices to a CORX file.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sdr-array/corx/internal/beacon"
	"github.com/sdr-array/corx/internal/carrier"
	"github.com/sdr-array/corx/internal/corx"
	"github.com/sdr-array/corx/internal/logging"
	"github.com/sdr-array/corx/internal/mdns"
	"github.com/sdr-array/corx/internal/rx"
	"github.com/sdr-array/corx/internal/source"
	"github.com/sdr-array/corx/internal/telemetry"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseConfig(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	logging.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := capture(ctx, cfg, logger); err != nil {
		logger.Error("capture failed", logging.Field{Key: "err", Value: err})
		var srcErr *source.Error
		if errors.As(err, &srcErr) {
			return srcErr.Code
		}
		return 255
	}
	return 0
}

func buildLogger(cfg cliConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.logLevel)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(level, format, os.Stderr), nil
}

func capture(ctx context.Context, cfg cliConfig, logger logging.Logger) error {
	template, err := beacon.LoadTemplate(cfg.templateFile)
	if err != nil {
		return err
	}
	corrDet, err := beacon.NewCorrDetector(template, cfg.blockLen, cfg.historyLen,
		cfg.corrThresh.constant, cfg.corrThresh.snr)
	if err != nil {
		return err
	}

	src, err := openSource(cfg, template)
	if err != nil {
		return err
	}
	defer src.Close()

	out, closeOut, err := openOutput(cfg.output)
	if err != nil {
		return err
	}
	if closeOut != nil {
		defer closeOut()
	}
	writer := corx.NewWriter(out)

	winStart, winEnd := cfg.carrWindow.bins(cfg.blockLen)
	preDet := carrier.NewDetector(cfg.blockLen, cfg.carrThresh.constant, cfg.carrThresh.snr,
		winStart, winEnd)
	tracker := carrier.NewTracker(carrier.Config{
		BlockLen:   cfg.blockLen,
		HistoryLen: cfg.historyLen,
		SampleRate: cfg.sampleRate,
		CarrierRef: cfg.carrierRef,
		SDRFreq:    cfg.freq,
	}, preDet)
	beacons := beacon.NewDetector(corrDet, cfg.sampleRate)

	opts := []rx.Option{}
	reporters := telemetry.MultiReporter{telemetry.NewLogReporter(logger)}
	if cfg.webAddr != "" {
		hub := telemetry.NewHub(500)
		reporters = append(reporters, hub)
		go telemetry.NewWebServer(cfg.webAddr, hub, logger).Start(ctx)
		if shutdown, err := announce(cfg); err != nil {
			logger.Warn("mdns announce failed", logging.Field{Key: "err", Value: err})
		} else {
			defer shutdown()
		}
	}
	opts = append(opts, rx.WithReporter(reporters))

	if cfg.beaconLog != "" {
		f, err := os.Create(cfg.beaconLog)
		if err != nil {
			return err
		}
		blog := corx.NewBeaconLog(f, f, int32(cfg.rxID))
		defer func() {
			if err := blog.Close(); err != nil {
				logger.Warn("close beacon log", logging.Field{Key: "err", Value: err})
			}
		}()
		opts = append(opts, rx.WithBeaconLog(blog))
	}

	pipe := rx.New(rx.Config{
		BlockLen:    cfg.blockLen,
		HistoryLen:  cfg.historyLen,
		SampleRate:  cfg.sampleRate,
		CorrSize:    cfg.corrSize,
		WindowStart: cfg.windowStart,
		WindowLen:   cfg.windowLen,
		BlocksSkip:  cfg.blocksSkip,
		RxID:        cfg.rxID,
	}, src, tracker, beacons, writer, logger, opts...)

	logger.Info("starting capture",
		logging.Field{Key: "input", Value: cfg.input},
		logging.Field{Key: "rxid", Value: cfg.rxID},
		logging.Field{Key: "sample_rate", Value: cfg.sampleRate},
		logging.Field{Key: "block_len", Value: cfg.blockLen},
		logging.Field{Key: "history_len", Value: cfg.historyLen})

	return pipe.Run(ctx)
}

func openSource(cfg cliConfig, template []float32) (source.Source, error) {
	srcCfg := source.Config{
		SampleRate: cfg.sampleRate,
		BlockLen:   cfg.blockLen,
		HistoryLen: cfg.historyLen,
		CenterFreq: uint32(cfg.freq),
		Gain:       int(cfg.gain * 10),
	}
	switch cfg.input {
	case "rtlsdr":
		return source.OpenRTL(srcCfg)
	case "sim":
		return source.NewSim(source.SimConfig{
			Config:      srcCfg,
			ToneBins:    cfg.carrierRef * float64(cfg.blockLen) / cfg.sampleRate,
			NoiseStddev: 0.01,
			Template:    template,
			BeaconStart: int(cfg.sampleRate / 2),
		}), nil
	default:
		return source.OpenFile(cfg.input, srcCfg)
	}
}

func openOutput(path string) (io.Writer, func() error, error) {
	switch path {
	case "":
		return nil, nil, nil
	case "-":
		return os.Stdout, nil, nil
	default:
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, err
		}
		return f, f.Close, nil
	}
}

func announce(cfg cliConfig) (func(), error) {
	port := 5555
	if _, p, ok := splitHostPort(cfg.webAddr); ok {
		port = p
	}
	instance := fmt.Sprintf("corx-rx-%d", cfg.rxID)
	return mdns.Announce(instance, port, []string{fmt.Sprintf("rxid=%d", cfg.rxID)})
}

// splitHostPort extracts the numeric port from a listen address like
// ":8080" or "0.0.0.0:8080".
func splitHostPort(addr string) (string, int, bool) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			port := 0
			if _, err := fmt.Sscanf(addr[i+1:], "%d", &port); err != nil {
				return "", 0, false
			}
			return addr[:i], port, true
		}
	}
	return "", 0, false
}
