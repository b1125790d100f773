package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Arham-Git047/Project-Sentinel/internal/config"
	"github.com/Arham-Git047/Project-Sentinel/internal/domain"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

// waterSeries is one Bandra pH reading per minute: steady at 7.0, then a
// spike on the last reading.
func waterSeries(steady int, spike float64) []string {
	start := time.Date(2025, 3, 14, 6, 0, 30, 0, time.UTC)
	var lines []string
	for i := 0; i < steady+1; i++ {
		v := 7.0
		if i == steady {
			v = spike
		}
		lines = append(lines, fmt.Sprintf(`{"source_type":"water","zone":"Bandra","timestamp":%q,"value":%g}`,
			start.Add(time.Duration(i)*time.Minute).Format(time.RFC3339), v))
	}
	return lines
}

func decodeOutput(t *testing.T, out *bytes.Buffer) ([]domain.AlertEvent, summary) {
	t.Helper()
	var lines []string
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NotEmpty(t, lines)

	var events []domain.AlertEvent
	for _, l := range lines[:len(lines)-1] {
		var ev domain.AlertEvent
		require.NoError(t, json.Unmarshal([]byte(l), &ev))
		events = append(events, ev)
	}
	var s summary
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &s))
	return events, s
}

func TestRunReplay_SpikeOpensAlert(t *testing.T) {
	cfg := loadConfig(t)
	in := strings.Join(waterSeries(15, 12.5), "\n")

	var out, errOut bytes.Buffer
	require.NoError(t, runReplay(context.Background(), cfg, options{logLevel: "error"}, strings.NewReader(in), &out, &errOut))

	events, s := decodeOutput(t, &out)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOpened, events[0].Kind)
	assert.Equal(t, "Bandra", events[0].Zone)
	assert.Equal(t, domain.ThreatWaterborne, events[0].ThreatType)

	assert.Equal(t, int64(16), s.Stats.TotalPointsSeen)
	require.Len(t, s.ActiveAlerts, 1)
	assert.Equal(t, events[0].AlertID, s.ActiveAlerts[0].ID)
}

func TestRunReplay_TailCyclesResolve(t *testing.T) {
	cfg := loadConfig(t)
	cfg.NotifyOnResolve = true
	in := "[" + strings.Join(waterSeries(15, 12.5), ",") + "]"

	var out, errOut bytes.Buffer
	opts := options{logLevel: "error", tailCycles: 31}
	require.NoError(t, runReplay(context.Background(), cfg, opts, strings.NewReader(in), &out, &errOut))

	events, s := decodeOutput(t, &out)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventOpened, events[0].Kind)
	assert.Equal(t, domain.EventResolved, events[1].Kind)
	assert.Empty(t, s.ActiveAlerts)
}

func TestRunReplay_UntimestampedInputRejected(t *testing.T) {
	cfg := loadConfig(t)
	in := `{"source_type":"water","zone":"Bandra","value":7}
{"source_type":"water","zone":"Bandra","timestamp":"2025-03-14T06:00:00Z","value":7}`

	var out, errOut bytes.Buffer
	require.NoError(t, runReplay(context.Background(), cfg, options{logLevel: "error"}, strings.NewReader(in), &out, &errOut))

	_, s := decodeOutput(t, &out)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, int64(1), s.Stats.TotalPointsSeen)
}

func TestRunReplay_EmptyInput(t *testing.T) {
	var out, errOut bytes.Buffer
	err := runReplay(context.Background(), loadConfig(t), options{}, strings.NewReader("  \n"), &out, &errOut)
	assert.EqualError(t, err, "no readings to replay")
}

func TestRootCmd_FlagsOverrideConfig(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(strings.Join(waterSeries(15, 12.5), "\n")))
	cmd.SetArgs([]string{"--quorum", "0.99", "--log-level", "error"})

	require.NoError(t, cmd.Execute())

	events, _ := decodeOutput(t, &out)
	assert.Empty(t, events, "a near-unanimous quorum rejects a four-model vote")
}
