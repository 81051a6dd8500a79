// Command quotactl prints the month's route-API quota usage.
//
// It is a read-only collaborator of the admission core: it loads the same
// config and quota record the tracker writes, and renders used/remaining
// per provider.
//
// Usage:
//
//	quotactl [-config config.yaml] [-quota-file path]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	admission "github.com/Cnd-North/adsb-flight-tracker"
	"github.com/Cnd-North/adsb-flight-tracker/ledger"
)

const barLength = 40

func main() {
	configPath := flag.String("config", "", "path to YAML config (default: built-in defaults)")
	quotaFile := flag.String("quota-file", "", "path to quota record (default: $ADSB_QUOTA_FILE or ~/.adsb-tracker/api_quota.json)")
	flag.Parse()

	cfg := admission.DefaultConfig()
	if *configPath != "" {
		loaded, err := admission.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	l, err := ledger.NewFileLedger(*quotaFile, cfg.Limits())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	snap, err := l.Snapshot(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	printStatus(snap)
}

func printStatus(snap admission.Snapshot) {
	rule := strings.Repeat("=", 60)
	fmt.Println(rule)
	fmt.Println("API QUOTA STATUS")
	fmt.Println(rule)
	fmt.Printf("Month: %s\n\n", snap.Month)

	names := make([]string, 0, len(snap.Providers))
	for name := range snap.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		u := snap.Providers[name]
		fmt.Printf("%s:\n", strings.ToUpper(name))
		fmt.Printf("  Used:      %d/%d (%.1f%%)\n", u.Used, u.Limit, u.Percent())
		fmt.Printf("  Remaining: %d\n", u.Remaining())
		fmt.Printf("  [%s]\n", bar(u))

		switch {
		case u.Remaining() == 0:
			fmt.Println("  WARNING: quota exhausted - resets next month")
		case u.Remaining() <= 10:
			fmt.Printf("  WARNING: low quota - %d requests left\n", u.Remaining())
		}
		fmt.Println()
	}

	fmt.Println(rule)
}

func bar(u admission.ProviderUsage) string {
	filled := 0
	if u.Limit > 0 {
		filled = barLength * u.Used / u.Limit
	}
	if filled > barLength {
		filled = barLength
	}
	return strings.Repeat("#", filled) + strings.Repeat("-", barLength-filled)
}
