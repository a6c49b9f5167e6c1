package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/heightmap"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/noise"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode: 2 при неверных аргументах, 3 для вырожденной карты, иначе 1
func exitCode(err error) int {
	switch {
	case errors.Is(err, noise.ErrInvalidArgument):
		return 2
	case errors.Is(err, noise.ErrDegenerateInput):
		return 3
	default:
		return 1
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mapgen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		side       = fs.Int("side", 0, "length of side of map")
		step       = fs.Int("step", 0, "step between each vertex of map")
		smoothness = fs.Int("smoothness", 0, "smoothness of the map (more is more smooth)")
		seed       = fs.String("seed", "", "seed for random number generator (integer or any string)")
		sea        = fs.Int("sea", 0, "sea level of the map")
		altMax     = fs.Int("max", 0, "maximum of the map")
		algorithm  = fs.String("algorithm", "", "noise algorithm: gradient, perlin, simplex")
		palette    = fs.String("palette", "", "gradient palette: 8 or 4")
		workers    = fs.Int("workers", -1, "parallel workers, 0 - unlimited")
		configPath = fs.String("config", "", "YAML config file (generator section)")
		outPath    = fs.String("out", "", "write JSON to file instead of stdout")
		pngPath    = fs.String("png", "", "also write grayscale PNG preview")
		verbose    = fs.Bool("v", false, "log generation details to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *verbose {
		logging.SetDefaultLogger(logging.NewWriterLogger("mapgen", stderr, logging.DEBUG))
		defer logging.SetDefaultLogger(nil)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	params := cfg.Generator

	// Флаги имеют приоритет над файлом конфигурации
	var seedErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "side":
			params.Side = *side
		case "step":
			params.Step = *step
		case "smoothness":
			params.Resolution = *smoothness
		case "sea":
			params.Sea = *sea
		case "max":
			params.AltMax = *altMax
		case "algorithm":
			params.Algorithm = *algorithm
		case "palette":
			params.Palette = *palette
		case "workers":
			params.Workers = *workers
		case "seed":
			s, err := noise.ParseSeed(*seed)
			if err != nil {
				seedErr = err
				return
			}
			params.Seed = &s
		}
	})
	if seedErr != nil {
		return seedErr
	}

	m, err := heightmap.NewGenerator(nil).Generate(ctx, params)
	if err != nil {
		return err
	}

	if *outPath == "" {
		if err := m.Encode(stdout); err != nil {
			return fmt.Errorf("запись JSON: %w", err)
		}
	} else if err := writeFile(*outPath, m.Encode); err != nil {
		return fmt.Errorf("запись JSON: %w", err)
	}

	if *pngPath != "" {
		err := writeFile(*pngPath, func(w io.Writer) error { return heightmap.WritePNG(w, m) })
		if err != nil {
			return fmt.Errorf("запись PNG: %w", err)
		}
	}
	return nil
}

// writeFile создаёт файл и пишет в него через write.
func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	return writeAndClose(f, write)
}

// writeAndClose закрывает w в любом случае и возвращает ошибку Close
func writeAndClose(w io.WriteCloser, write func(io.Writer) error) error {
	if err := write(w); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("закрытие: %w", err)
	}
	return nil
}
