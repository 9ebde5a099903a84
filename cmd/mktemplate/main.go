// Command mktemplate writes a beacon template file for a given block
// geometry. The waveform is deterministic for a seed, so every receiver in
// an array generates an identical template.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sdr-array/corx/internal/beacon"
)

func main() {
	out := flag.String("o", "template.tpl", "output template file")
	blockLen := flag.Int("b", 16384, "samples per block")
	historyLen := flag.Int("y", 4920, "samples of overlap between blocks")
	seed := flag.Int64("seed", 1, "chip sequence seed")
	flag.Parse()

	length := *blockLen - *historyLen + 1
	if length <= 1 {
		fmt.Fprintf(os.Stderr, "invalid geometry: block %d, history %d\n", *blockLen, *historyLen)
		os.Exit(2)
	}

	samples := beacon.GenerateTemplate(length, *seed)
	if err := beacon.SaveTemplate(*out, samples); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s: %d samples\n", *out, length)
}
