// Command dosecalc evaluates the dose model from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"radiation.space/internal/config"
	"radiation.space/internal/curve"
	"radiation.space/internal/dose"
	"radiation.space/internal/flux"
	"radiation.space/internal/logger"
	"radiation.space/internal/shielding"
)

type options struct {
	material string
	days     int
	flux     float64
	fluxSet  bool // false fetches the live value
	fluxURL  string
	timeout  time.Duration
	fallback float64
	csvPath  string
	maxDays  int
	compare  bool
	logLevel string
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// parseFlags takes its defaults from cfg so the CLI and the server agree.
func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("dosecalc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.material, "material", shielding.DefaultMaterial, "Shielding material")
	fs.IntVar(&o.days, "days", 180, "Mission duration in days")
	fs.Float64Var(&o.flux, "flux", 0, "Proton flux in p cm^-2 s^-1 sr^-1; omit to fetch the live value")
	fs.StringVar(&o.fluxURL, "flux-url", cfg.Flux.URL, "Live flux feed")
	fs.DurationVar(&o.timeout, "timeout", cfg.Flux.Timeout, "Live flux fetch timeout")
	fs.Float64Var(&o.fallback, "fallback", cfg.Flux.Fallback, "Flux used when the live fetch fails")
	fs.StringVar(&o.csvPath, "csv", "", "Write the cumulative dose curve to this file or directory")
	fs.IntVar(&o.maxDays, "max-days", cfg.MaxDays, "Length of the exported curve")
	fs.BoolVar(&o.compare, "compare", false, "Rank every material for the same mission")
	fs.StringVar(&o.logLevel, "log-level", "warn", "Log level")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if fs.NArg() > 0 {
		return o, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "flux" {
			o.fluxSet = true
		}
	})
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	o, err := parseFlags(args, cfg, stderr)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{Level: o.logLevel, Pretty: true, Out: stderr})

	catalog := shielding.Default()
	material, err := catalog.Resolve(o.material)
	if err != nil {
		return fmt.Errorf("%w (known: %s)", err, strings.Join(catalog.Names(), ", "))
	}

	fluxValue := o.flux
	if o.fluxSet {
		if err := dose.ValidateFlux(fluxValue); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Proton Flux (>=10 MeV): %.2e p cm^-2 s^-1 sr^-1 (given)\n", fluxValue)
	} else {
		reading, err := fetchLive(ctx, cfg, o, log)
		if err != nil {
			return err
		}
		fluxValue = reading.Value
		fmt.Fprintln(stdout, reading.Message())
	}

	calc := dose.NewCalculator(catalog, cfg.MaxDays)

	if o.compare {
		rows, err := calc.Compare(fluxValue, o.days)
		if err != nil {
			return err
		}
		printComparison(stdout, rows, o.days)
	} else {
		result, err := calc.Calculate(fluxValue, dose.MissionParameters{DurationDays: o.days, Material: material.Name})
		if err != nil {
			return err
		}
		printResult(stdout, material, o.days, result)
	}

	if o.csvPath != "" {
		if err := calc.ValidateDays("max_days", o.maxDays); err != nil {
			return err
		}
		path, err := writeCurve(catalog, material.Name, fluxValue, o.maxDays, o.csvPath)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nDose curve written to %s\n", path)
	}
	return nil
}

// fetchLive reads the feed once, checking the URL against the same allowlist
// the server uses.
func fetchLive(ctx context.Context, cfg *config.Config, o options, log zerolog.Logger) (flux.Reading, error) {
	if err := dose.ValidateFlux(o.fallback); err != nil {
		return flux.Reading{}, fmt.Errorf("fallback: %w", err)
	}
	fluxURL, err := flux.NewSourceValidator(cfg.Flux.AllowedHosts).Validate(o.fluxURL)
	if err != nil {
		return flux.Reading{}, fmt.Errorf("flux-url: %w", err)
	}

	provider := flux.NewCachedProvider(
		flux.NewClient(fluxURL, o.timeout, log),
		flux.ProviderConfig{Fallback: o.fallback, Source: fluxURL},
		log,
	)
	return provider.Flux(ctx), nil
}

func printResult(w io.Writer, m shielding.Material, days int, r dose.Result) {
	r = r.Rounded()
	fmt.Fprintf(w, "\n%-22s %s (attenuation %.2f)\n", "Shielding:", m.Name, m.Factor)
	fmt.Fprintf(w, "%-22s %d days\n", "Mission duration:", days)
	fmt.Fprintf(w, "%-22s %.2f mSv/day\n", "Daily dose:", r.DailyDoseMSv)
	fmt.Fprintf(w, "%-22s %.2f mSv\n", "Total dose:", r.TotalDoseMSv)
	fmt.Fprintf(w, "%-22s %.2f %%\n", "Excess cancer risk:", r.RiskPercent)
}

func printComparison(w io.Writer, rows []dose.Comparison, days int) {
	fmt.Fprintf(w, "\n--- Shielding comparison, %d days ---\n", days)
	fmt.Fprintf(w, "%-26s | %-11s | %-13s | %-13s | %-9s | %s\n",
		"Material", "Attenuation", "Daily (mSv)", "Total (mSv)", "Risk (%)", "Reduction")
	fmt.Fprintln(w, strings.Repeat("-", 96))

	for _, row := range rows {
		fmt.Fprintf(w, "%-26s | %11.2f | %13.4f | %13.2f | %9.4f | %.0f%%\n",
			row.Material.Name,
			row.Material.Factor,
			row.Result.DailyDoseMSv,
			row.Result.TotalDoseMSv,
			row.Result.RiskPercent,
			row.ReductionPercent)
	}
}

// writeCurve exports the dose curve. A directory target gets the standard
// download name.
func writeCurve(catalog *shielding.Catalog, material string, fluxValue float64, maxDays int, target string) (string, error) {
	series, err := curve.DoseCurve(catalog, material, fluxValue, maxDays)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		target = filepath.Join(target, curve.FileName(material))
	}

	f, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	if err := curve.WriteCSV(f, series); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", target, err)
	}
	return target, nil
}
