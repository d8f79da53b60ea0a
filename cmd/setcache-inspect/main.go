// Command setcache-inspect polls a running service's debug snapshot endpoint
// and prints cache statistics, either once or on a fixed interval.
//
// The target service is expected to expose:
//   - GET /debug/setcache/snapshot - JSON payload with aggregate stats and,
//     when requested, the raw per-set dump from Cache.Inspect.
//
// The snapshot is decoded into map[string]any to avoid version skew between
// this CLI and the library it is inspecting.
//
// © 2025 setcache authors. MIT License.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

var version = "dev"

type options struct {
	target   string
	interval time.Duration
	watch    bool
	json     bool
	detailed bool
	version  bool
}

func parseFlags() *options {
	opts := &options{}
	pflag.StringVarP(&opts.target, "target", "t", "http://localhost:6060", "base URL of the service exposing /debug/setcache/snapshot")
	pflag.DurationVarP(&opts.interval, "interval", "i", 2*time.Second, "poll interval when --watch is set")
	pflag.BoolVarP(&opts.watch, "watch", "w", false, "poll repeatedly instead of a single snapshot")
	pflag.BoolVar(&opts.json, "json", false, "print raw JSON instead of a formatted summary")
	pflag.BoolVarP(&opts.detailed, "detailed", "d", false, "request the per-set Inspect dump in addition to aggregate stats")
	pflag.BoolVar(&opts.version, "version", false, "print the CLI version and exit")
	pflag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	if opts.version {
		fmt.Println(version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(ctx, opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return
			}
		}
	}

	if err := dumpOnce(ctx, opts); err != nil {
		fatal(err)
	}
}

func dumpOnce(ctx context.Context, opts *options) error {
	snap, err := fetchSnapshot(ctx, opts.target, opts.detailed)
	if err != nil {
		return err
	}
	if opts.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	return prettyPrint(snap)
}

func fetchSnapshot(ctx context.Context, base string, detailed bool) (map[string]any, error) {
	url := base + "/debug/setcache/snapshot"
	if detailed {
		url += "?detailed=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}
	var data map[string]any
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func prettyPrint(data map[string]any) error {
	fmt.Printf("Hits:      %v\n", data["hits"])
	fmt.Printf("Misses:    %v\n", data["misses"])
	fmt.Printf("Evictions: %v\n", data["evictions"])
	fmt.Printf("Len:       %v\n", data["len"])
	if sets, ok := data["sets"]; ok {
		fmt.Printf("Sets:      %v (pass --detailed for raw per-set state)\n", sets)
	}
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "setcache-inspect:", err)
	os.Exit(1)
}
