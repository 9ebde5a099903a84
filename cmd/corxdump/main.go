// Command corxdump prints the contents of a CORX capture file: the file
// header, every cycle-run, and summary statistics. Useful for verifying a
// capture before shipping it to the correlation host.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sdr-array/corx/internal/corx"
)

func main() {
	showCycles := flag.Bool("cycles", false, "print per-cycle phase error codes")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-cycles] <file.corx>\n", os.Args[0])
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer f.Close()

	file, err := corx.ReadFile(f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("slice: start %d, size %d\n", file.Header.SliceStart, file.Header.SliceSize)
	fmt.Printf("runs: %d\n", len(file.Runs))

	totalCycles := 0
	for i, run := range file.Runs {
		b := run.Beacon
		ts := time.Unix(int64(b.TimestampSec), int64(b.TimestampMsec)*1e6).UTC()
		state := "closed"
		if !run.Closed {
			state = "open"
		}
		fmt.Printf("run %3d: soa=%.3f ts=%s ppm=%.3f carrier=%.3f ampl=%d beacon=%d/%d preamp=%t cycles=%d (%s)\n",
			i, b.SOA, ts.Format(time.RFC3339Nano), float64(b.ClockError)*1e6,
			b.CarrierPos, b.CarrierAmplitude, b.BeaconAmplitude, b.BeaconNoise,
			b.PreampOn != 0, len(run.Cycles), state)
		totalCycles += len(run.Cycles)

		if *showCycles {
			for j, c := range run.Cycles {
				fmt.Printf("  cycle %4d: phase_error=%d\n", j, c.PhaseError)
			}
		}
	}
	fmt.Printf("total cycles: %d\n", totalCycles)
}
