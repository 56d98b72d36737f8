// Command tryon applies one or more garments to a person photo through the
// try-on API and writes the final image to disk.
//
//	tryon -url http://localhost:8080 -token $TOKEN -person me.jpg \
//	      -step shirt.png:upper -step jeans.png:lower -out result.png
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"virtual-tryon/internal/client"
)

type stepList []client.ChainStep

func (s *stepList) String() string { return fmt.Sprintf("%d steps", len(*s)) }

// Set parses "<garment path or ref>:<style>".
func (s *stepList) Set(v string) error {
	i := strings.LastIndex(v, ":")
	if i <= 0 || i == len(v)-1 {
		return fmt.Errorf("step %q: want <garment>:<style>", v)
	}
	in, err := loadInput(v[:i])
	if err != nil {
		return err
	}
	*s = append(*s, client.ChainStep{Garment: in, Style: v[i+1:]})
	return nil
}

// loadInput reads a local file, or treats owners/... as an artifact reference.
func loadInput(v string) (client.Input, error) {
	if strings.HasPrefix(v, "owners/") {
		return client.Input{Ref: v}, nil
	}
	data, err := os.ReadFile(v)
	if err != nil {
		return client.Input{}, err
	}
	return client.Input{Data: data, Filename: filepath.Base(v)}, nil
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	var steps stepList
	baseURL := flag.String("url", "http://localhost:8080", "API base URL")
	token := flag.String("token", os.Getenv("TRYON_TOKEN"), "bearer token")
	owner := flag.String("owner", "", "owner id sent as X-Owner-ID (dev servers only)")
	personPath := flag.String("person", "", "person image path or artifact reference")
	out := flag.String("out", "result.png", "where to write the final image")
	attempts := flag.Int("max-attempts", 60, "status reads per step before giving up")
	flag.Var(&steps, "step", "garment step <path-or-ref>:<upper|lower>; repeatable")
	flag.Parse()

	if *personPath == "" || len(steps) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	person, err := loadInput(*personPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("read person image")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts []client.Option
	if *owner != "" {
		opts = append(opts, client.WithDevOwner(*owner))
	}
	c := client.New(*baseURL, *token, opts...)
	pollOpts := client.DefaultPollOptions()
	pollOpts.MaxAttempts = *attempts
	chain := client.NewChain(c, client.NewPoller(c, pollOpts))

	start := time.Now()
	res, err := chain.Run(ctx, person, steps)
	if err != nil {
		var stepErr *client.ChainStepError
		if errors.As(err, &stepErr) {
			logger.Error().Int("step", stepErr.Step).Str("job_id", stepErr.JobID).Err(stepErr.Err).Msg("chain stopped")
		} else {
			logger.Error().Err(err).Msg("chain failed")
		}
		if res != nil && len(res.JobIDs) > 0 {
			logger.Info().Strs("jobs", res.JobIDs).Msg("submitted jobs")
		}
		os.Exit(1)
	}

	img, err := c.Download(ctx, res.Final.ResultURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("download result")
	}
	if err := os.WriteFile(*out, img, 0o644); err != nil {
		logger.Fatal().Err(err).Msg("write result")
	}
	logger.Info().
		Strs("jobs", res.JobIDs).
		Str("result_ref", res.Final.ResultRef).
		Str("out", *out).
		Dur("elapsed", time.Since(start)).
		Msg("try-on complete")
	if balance, err := c.Credits(ctx); err == nil {
		logger.Info().Int("balance", balance).Msg("credits left")
	}
}
