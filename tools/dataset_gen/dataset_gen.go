// Command dataset_gen is a small helper that generates deterministic key
// datasets for standalone benchmarking of setcache outside `go test`. It
// emits newline-separated uint64 numbers which can later be fed to load
// testers or external benchmarking suites.
//
// Usage:
//
//	go run ./tools/dataset_gen --n 1000000 --dist=zipf --seed=42 --out keys.txt
//
// © 2025 setcache authors. MIT License.
package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/pflag"
)

func main() {
	var (
		n       = pflag.Int("n", 1_000_000, "number of keys to generate")
		dist    = pflag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = pflag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = pflag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		seedVal = pflag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = pflag.String("out", "", "output file (default stdout)")
	)
	pflag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	var gen func() uint64
	switch *dist {
	case "uniform":
		gen = rnd.Uint64
	case "zipf":
		if *zipfS <= 1.0 || *zipfV < 1.0 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >=1")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, ^uint64(0))
		gen = z.Uint64
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	for i := 0; i < *n; i++ {
		fmt.Fprintln(w, gen())
	}
}
