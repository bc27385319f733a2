// Command denoise removes noise from speech recordings using a two-stage
// recurrent model.
//
// Usage:
//
//	denoise [flags] input.wav [input2.wav ...]
//
// Each input file is decoded, downmixed to mono, resampled to the model's
// rate, denoised and written as a 16-bit mono WAV next to the input with a
// ".denoised.wav" suffix (or into -out, if given).
//
// Examples:
//
//	denoise -model dtln.weights noisy.wav
//	denoise -model dtln.weights -out clean/ take1.wav take2.wav
//	DENOISE_MODEL=dtln.weights denoise -workers 8 *.wav
//
// Configuration is read from the environment (and an optional .env file);
// flags take precedence.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-denoise/dsp/denoise"
	"github.com/cwbudde/algo-denoise/dsp/wave"
	"github.com/cwbudde/algo-denoise/dtln"
)

type config struct {
	ModelPath string `env:"DENOISE_MODEL"`
	OutDir    string `env:"DENOISE_OUT"`
	LogLevel  string `env:"DENOISE_LOG_LEVEL" envDefault:"info"`
	Workers   int    `env:"DENOISE_WORKERS" envDefault:"4"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "denoise:", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("read environment: %w", err)
	}

	flag.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "path to the weight container")
	flag.StringVar(&cfg.OutDir, "out", cfg.OutDir, "output directory (default: next to each input)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace..error)")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "maximum files processed in parallel")
	flag.Parse()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().Level(level)

	if flag.NArg() == 0 {
		flag.Usage()
		return fmt.Errorf("no input files")
	}

	if cfg.ModelPath == "" {
		return fmt.Errorf("no model given (use -model or DENOISE_MODEL)")
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}

	model, err := dtln.Load(cfg.ModelPath)
	if err != nil {
		return err
	}

	info := model.Info()
	log.Info().
		Str("model", cfg.ModelPath).
		Int("sample_rate", info.SampleRate).
		Int("frame_len", info.FrameLen).
		Int("hop", info.Hop).
		Int("weights", info.Weights).
		Msg("model loaded")

	pipe, err := denoise.New(model.Stage1(), model.Stage2(),
		denoise.WithSampleRate(info.SampleRate),
		denoise.WithStage1Framing(info.FrameLen, info.Hop, denoise.DefaultConfig().Stage1.Window),
		denoise.WithStage2Framing(info.FrameLen, info.Hop, denoise.DefaultConfig().Stage2.Window),
	)
	if err != nil {
		return err
	}

	if cfg.OutDir != "" {
		if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(cfg.Workers)

	for _, input := range flag.Args() {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			out := outputPath(input, cfg.OutDir)
			flog := log.With().Str("input", input).Str("output", out).Logger()

			if err := processFile(pipe, input, out); err != nil {
				flog.Error().Err(err).Msg("failed")
				return fmt.Errorf("%s: %w", input, err)
			}

			flog.Info().Msg("done")
			return nil
		})
	}

	return g.Wait()
}

// outputPath derives the destination file name: "<name>.denoised.wav" next
// to the input, or inside dir when given.
func outputPath(input, dir string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input)) + ".denoised.wav"
	if dir != "" {
		return filepath.Join(dir, base)
	}

	return filepath.Join(filepath.Dir(input), base)
}

func processFile(pipe *denoise.Pipeline, input, output string) error {
	in, err := decodeWAV(input)
	if err != nil {
		return err
	}

	rate := pipe.Config().SampleRate
	w, err := wave.Ingest(in.samples, in.channels, in.rate, rate)
	if err != nil {
		return err
	}

	clean, err := pipe.Process(w)
	if err != nil {
		return err
	}

	return encodeWAV(output, clean.Clipped())
}

type decoded struct {
	samples  []float64
	channels int
	rate     int
}

func decodeWAV(path string) (decoded, error) {
	f, err := os.Open(path)
	if err != nil {
		return decoded{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return decoded{}, fmt.Errorf("not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return decoded{}, fmt.Errorf("decode: %w", err)
	}

	samples, err := wave.FromPCM(buf.Data, int(dec.BitDepth))
	if err != nil {
		return decoded{}, err
	}

	return decoded{
		samples:  samples,
		channels: buf.Format.NumChannels,
		rate:     buf.Format.SampleRate,
	}, nil
}

func encodeWAV(path string, w wave.Waveform) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(f, w.Rate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: w.Rate},
		Data:           wave.ToPCM16(w.Samples),
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("encode: %w", err)
	}

	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finalize: %w", err)
	}

	return f.Close()
}
