package main

import (
	"testing"
)

func TestThresholdSet(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		constant float32
		snr      float32
		wantErr  bool
	}{
		{name: "snr_only", in: "15s", snr: 15},
		{name: "const_only", in: "100c", constant: 100},
		{name: "both", in: "100c15s", constant: 100, snr: 15},
		{name: "fractional", in: "2.5s", snr: 2.5},
		{name: "empty", in: "", wantErr: true},
		{name: "trailing", in: "15s7", wantErr: true},
		{name: "garbage", in: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var th threshold
			err := th.Set(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set(%q): %v", tt.in, err)
			}
			if th.constant != tt.constant || th.snr != tt.snr {
				t.Fatalf("Set(%q) = %gc%gs, want %gc%gs",
					tt.in, th.constant, th.snr, tt.constant, tt.snr)
			}
		})
	}
}

func TestBinWindow(t *testing.T) {
	var w binWindow
	if err := w.Set("-100:200"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	start, end := w.bins(1024)
	if start != 924 || end != 201 {
		t.Fatalf("bins = %d:%d, want 924:201", start, end)
	}

	var empty binWindow
	start, end = empty.bins(1024)
	if start != 0 || end != 0 {
		t.Fatalf("unset window = %d:%d, want 0:0", start, end)
	}

	if err := w.Set("nonsense"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseConfigFlagsOverrideDefaults(t *testing.T) {
	cfg, err := parseConfig([]string{
		"-o", "out.corx",
		"-u", "20s",
		"-z", "custom.tpl",
		"-r", "7",
		"-i", "sim",
		"-s", "2048",
		"-b", "1024",
		"-y", "768",
	})
	if err != nil {
		t.Fatalf("parseConfig: %v", err)
	}
	if cfg.output != "out.corx" || cfg.templateFile != "custom.tpl" || cfg.rxID != 7 {
		t.Fatalf("receiver flags not applied: %+v", cfg)
	}
	if cfg.corrThresh.snr != 20 || cfg.corrThresh.constant != 0 {
		t.Fatalf("correlator threshold %+v", cfg.corrThresh)
	}
	if cfg.input != "sim" || cfg.sampleRate != 2048 || cfg.blockLen != 1024 || cfg.historyLen != 768 {
		t.Fatalf("source flags not applied: %+v", cfg)
	}
}

func TestParseConfigRejectsBadGeometry(t *testing.T) {
	if _, err := parseConfig([]string{"-b", "100", "-y", "200"}); err == nil {
		t.Fatal("expected geometry error")
	}
	if _, err := parseConfig([]string{"-s", "-5"}); err == nil {
		t.Fatal("expected sample rate error")
	}
}
