package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// cliConfig is the fully resolved receiver configuration: TOML file
// defaults overridden by command-line flags.
type cliConfig struct {
	// spec'd receiver flags
	output       string
	corrThresh   threshold
	templateFile string
	rxID         int

	// source flags
	input       string
	sampleRate  float64
	blockLen    int
	historyLen  int
	freq        float64
	gain        float64
	blocksSkip  int
	carrThresh  threshold
	carrWindow  binWindow
	carrierRef  float64
	corrSize    int
	windowStart int
	windowLen   int

	// ambient
	beaconLog string
	webAddr   string
	logLevel  string
	logFormat string
}

// threshold is a detection threshold in the fastcard "<const>c<snr>s" form.
type threshold struct {
	constant float32
	snr      float32
}

func (t *threshold) String() string {
	return fmt.Sprintf("%gc%gs", t.constant, t.snr)
}

// Set parses e.g. "15s", "100c" or "100c15s".
func (t *threshold) Set(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("empty threshold")
	}
	t.constant = 0
	t.snr = 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case 'c', 's':
			v, err := strconv.ParseFloat(s[start:i], 32)
			if err != nil {
				return fmt.Errorf("threshold %q: %v", s, err)
			}
			if s[i] == 'c' {
				t.constant = float32(v)
			} else {
				t.snr = float32(v)
			}
			start = i + 1
		}
	}
	if start != len(s) {
		return fmt.Errorf("threshold %q: trailing %q", s, s[start:])
	}
	return nil
}

// binWindow is a carrier search window "start:stop" in signed FFT bins.
// The zero value means the whole spectrum.
type binWindow struct {
	start, stop int
	set         bool
}

func (w *binWindow) String() string {
	if !w.set {
		return ""
	}
	return fmt.Sprintf("%d:%d", w.start, w.stop)
}

func (w *binWindow) Set(s string) error {
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return fmt.Errorf("window %q: want start:stop", s)
	}
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return fmt.Errorf("window %q: %v", s, err)
	}
	stop, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return fmt.Errorf("window %q: %v", s, err)
	}
	w.start = start
	w.stop = stop
	w.set = true
	return nil
}

// bins resolves the window to indexes of a blockLen spectrum. Negative
// bins count down from the top.
func (w *binWindow) bins(blockLen int) (int, int) {
	if !w.set {
		return 0, 0
	}
	wrap := func(v int) int {
		v %= blockLen
		if v < 0 {
			v += blockLen
		}
		return v
	}
	return wrap(w.start), wrap(w.stop) + 1
}

// fileDefaults reads corx.toml (from /etc/corx or the working directory)
// and fills in the built-in defaults for anything it does not set.
func fileDefaults() *viper.Viper {
	v := viper.New()
	v.SetConfigName("corx")
	v.AddConfigPath("/etc/corx")
	v.AddConfigPath(".")

	v.SetDefault("input", "rtlsdr")
	v.SetDefault("sample_rate", 2.4e6)
	v.SetDefault("block_len", 16384)
	v.SetDefault("history_len", 4920)
	v.SetDefault("freq", 1.42e9)
	v.SetDefault("gain", 0.0)
	v.SetDefault("skip", 2)
	v.SetDefault("carrier_threshold", "4s")
	v.SetDefault("corr_threshold", "15s")
	v.SetDefault("template", "template.tpl")
	v.SetDefault("carrier_ref", -277800.0)
	v.SetDefault("corr_size", 1024)
	v.SetDefault("window_start", 0)
	v.SetDefault("window_len", -1)
	v.SetDefault("rxid", -1)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")

	// Missing file is fine; the defaults above apply.
	_ = v.ReadInConfig()
	return v
}

// parseConfig merges file defaults and flags.
func parseConfig(args []string) (cliConfig, error) {
	d := fileDefaults()

	cfg := cliConfig{}
	if err := cfg.corrThresh.Set(d.GetString("corr_threshold")); err != nil {
		return cliConfig{}, err
	}
	if err := cfg.carrThresh.Set(d.GetString("carrier_threshold")); err != nil {
		return cliConfig{}, err
	}

	fs := flag.NewFlagSet("corx", flag.ContinueOnError)
	fs.StringVar(&cfg.output, "o", d.GetString("output"), "CORX output file ('-' for stdout, empty for none)")
	fs.Var(&cfg.corrThresh, "u", "correlator threshold (<const>c<snr>s)")
	fs.StringVar(&cfg.templateFile, "z", d.GetString("template"), "beacon template file (.tpl)")
	fs.IntVar(&cfg.rxID, "r", d.GetInt("rxid"), "receiver identifier")

	fs.StringVar(&cfg.input, "i", d.GetString("input"), "input: 'rtlsdr', 'sim', a raw IQ file, or '-' for stdin")
	fs.Float64Var(&cfg.sampleRate, "s", d.GetFloat64("sample_rate"), "sample rate in Hz")
	fs.IntVar(&cfg.blockLen, "b", d.GetInt("block_len"), "samples per block")
	fs.IntVar(&cfg.historyLen, "y", d.GetInt("history_len"), "samples of overlap between blocks")
	fs.Float64Var(&cfg.freq, "f", d.GetFloat64("freq"), "tuner centre frequency in Hz")
	fs.Float64Var(&cfg.gain, "g", d.GetFloat64("gain"), "tuner gain in dB (0 = auto)")
	fs.IntVar(&cfg.blocksSkip, "k", d.GetInt("skip"), "blocks to skip at startup")
	fs.Var(&cfg.carrThresh, "t", "carrier detection threshold (<const>c<snr>s)")
	fs.Var(&cfg.carrWindow, "w", "carrier search window in bins (start:stop)")
	fs.Float64Var(&cfg.carrierRef, "carrier-ref", d.GetFloat64("carrier_ref"), "nominal carrier offset in Hz for the clock-error estimate")
	fs.IntVar(&cfg.corrSize, "corr-size", d.GetInt("corr_size"), "cycle length in samples")
	fs.IntVar(&cfg.windowStart, "window-start", d.GetInt("window_start"), "first FFT bin of the output slice")
	fs.IntVar(&cfg.windowLen, "window-len", d.GetInt("window_len"), "output slice length (<= 0 for full corr size)")
	fs.StringVar(&cfg.beaconLog, "beacon-log", d.GetString("beacon_log"), "optional parquet beacon diagnostics file")
	fs.StringVar(&cfg.webAddr, "web-addr", d.GetString("web_addr"), "optional telemetry listen address (e.g. :8080)")
	fs.StringVar(&cfg.logLevel, "log-level", d.GetString("log_level"), "log level (debug|info|warn|error)")
	fs.StringVar(&cfg.logFormat, "log-format", d.GetString("log_format"), "log format (text|json)")

	if err := fs.Parse(args); err != nil {
		return cliConfig{}, err
	}

	if cfg.blockLen <= 0 || cfg.historyLen < 0 || cfg.historyLen >= cfg.blockLen {
		return cliConfig{}, fmt.Errorf("invalid block geometry: block %d, history %d", cfg.blockLen, cfg.historyLen)
	}
	if cfg.sampleRate <= 0 {
		return cliConfig{}, fmt.Errorf("invalid sample rate %g", cfg.sampleRate)
	}
	return cfg, nil
}
