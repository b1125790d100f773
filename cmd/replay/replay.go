package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/Arham-Git047/Project-Sentinel/internal/config"
	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
	"github.com/Arham-Git047/Project-Sentinel/internal/observability"
	"github.com/Arham-Git047/Project-Sentinel/internal/pipeline"
)

type options struct {
	file       string
	interval   time.Duration
	quorum     float64
	tailCycles int
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay recorded sensor readings through the outbreak engine",
		Long: `Replay reads sensor readings (a JSON array or one JSON object per line),
feeds them through normalisation, the model ensemble, consensus voting and the
alert lifecycle on a simulated clock, and prints every lifecycle event as a
JSON line followed by a final summary.

Engine settings come from the same environment variables as the service;
flags override them.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.EvalInterval = opts.interval
			}
			if cmd.Flags().Changed("quorum") {
				cfg.QuorumFraction = opts.quorum
			}

			in := cmd.InOrStdin()
			if opts.file != "" && opts.file != "-" {
				f, err := os.Open(opts.file)
				if err != nil {
					return fmt.Errorf("open readings: %w", err)
				}
				defer f.Close()
				in = f
			}
			return runReplay(cmd.Context(), cfg, opts, in, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "-", "readings file, - for stdin")
	cmd.Flags().DurationVar(&opts.interval, "interval", time.Minute, "evaluation interval (overrides EVAL_INTERVAL)")
	cmd.Flags().Float64Var(&opts.quorum, "quorum", 0.6, "quorum fraction (overrides QUORUM_FRACTION)")
	cmd.Flags().IntVar(&opts.tailCycles, "tail-cycles", 0, "extra empty cycles to run after the last reading")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")
	return cmd
}

// record is one input reading with its parsed timestamp for ordering.
type record struct {
	raw domain.RawEvent
	at  time.Time
}

// summary is the final line printed after replay.
type summary struct {
	Stats        pipeline.Stats  `json:"stats"`
	ActiveAlerts []*domain.Alert `json:"active_alerts"`
	Rejected     int             `json:"rejected_input"`
}

// printer is the replay Emitter: every event becomes one JSON line.
type printer struct {
	enc *json.Encoder
	err error
}

func (p *printer) Emit(ev domain.AlertEvent) bool {
	if p.err == nil {
		p.err = p.enc.Encode(ev)
	}
	return p.err == nil
}

func runReplay(ctx context.Context, cfg *config.Config, opts options, in io.Reader, out, errOut io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := observability.NewLoggerTo(errOut, opts.logLevel, "text")

	records, rejected, err := readRecords(in)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return errors.New("no readings to replay")
	}
	slices.SortStableFunc(records, func(a, b record) int { return a.at.Compare(b.at) })

	clock := clockwork.NewFakeClockAt(records[0].at.Truncate(cfg.EvalInterval))
	domain.SetClock(clock)
	defer domain.SetClock(nil)

	p := &printer{enc: json.NewEncoder(out)}
	engine, _, err := pipeline.Assemble(cfg, pipeline.Deps{
		Clock:    clock,
		Emitter:  p,
		Resolver: domain.CentroidResolver{MaxDistanceKm: 25},
		Logger:   logger,
		Metrics:  observability.NewMetricsForTesting(),
	})
	if err != nil {
		return err
	}

	// Each cycle evaluates [now-interval, now), so every reading before the
	// next boundary is submitted before the clock crosses it.
	for i := 0; i < len(records); {
		next := clock.Now().Add(cfg.EvalInterval)
		for ; i < len(records) && records[i].at.Before(next); i++ {
			if err := engine.Accept(ctx, records[i].raw); err != nil {
				logger.Warn("reading rejected", "error", err)
			}
		}
		clock.Advance(cfg.EvalInterval)
		engine.Cycle(ctx)
		if p.err != nil {
			return fmt.Errorf("write event: %w", p.err)
		}
	}
	for i := 0; i < opts.tailCycles; i++ {
		clock.Advance(cfg.EvalInterval)
		engine.Cycle(ctx)
	}
	if p.err != nil {
		return fmt.Errorf("write event: %w", p.err)
	}

	return json.NewEncoder(out).Encode(summary{
		Stats:        engine.Stats(),
		ActiveAlerts: engine.ActiveAlerts(),
		Rejected:     rejected,
	})
}

// readRecords accepts a JSON array of readings or newline-delimited JSON.
// Entries without a parseable timestamp are counted and skipped; replay
// never falls back to the wall clock.
func readRecords(in io.Reader) ([]record, int, error) {
	br := bufio.NewReader(in)
	head, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	var raws []json.RawMessage
	dec := json.NewDecoder(br)
	if head == '[' {
		if err := dec.Decode(&raws); err != nil {
			return nil, 0, fmt.Errorf("decode readings array: %w", err)
		}
	} else {
		for {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, 0, fmt.Errorf("decode reading %d: %w", len(raws)+1, err)
			}
			raws = append(raws, raw)
		}
	}

	var records []record
	var rejected int
	for _, raw := range raws {
		var stamped struct {
			Timestamp string `json:"timestamp"`
		}
		if err := json.Unmarshal(raw, &stamped); err != nil || stamped.Timestamp == "" {
			rejected++
			continue
		}
		ev := domain.RawEvent{Value: bytes.Clone(raw)}
		r, err := domain.ParseRawEvent(ev)
		if err != nil {
			rejected++
			continue
		}
		records = append(records, record{raw: ev, at: r.Timestamp})
	}
	return records, rejected, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
