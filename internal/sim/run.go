// Package sim is the simulation harness: it decodes an arbitrary byte
// stream into an action log, pre-computes sound per-owner gain/loss
// ceilings, replays the log against the exchange through a classifying
// executor, liquidates every position, and verifies the system-wide
// financial invariants.
package sim

import (
	"io"
	"log/slog"

	"github.com/efreitasn/dexfuzz/internal/dex"
	"github.com/efreitasn/dexfuzz/internal/domain"
)

// Options configures one run. Verbosity (0–4) only changes diagnostic
// output, never semantics; ForceCrank is the diagnostic match-after-
// every-action mode and is deliberately a separate switch.
type Options struct {
	Verbosity  int
	ForceCrank bool
	Logger     *slog.Logger
}

// Report summarizes a completed run.
type Report struct {
	Owners             int            `json:"owners"`
	Actions            int            `json:"actions"`
	AbsorbedRejections map[string]int `json:"absorbed_rejections,omitempty"`
	CoinFeesAccrued    uint64         `json:"coin_fees_accrued"`
	PcFeesAccrued      uint64         `json:"pc_fees_accrued"`
}

// Run is the harness entry point: one arbitrary byte stream in, one
// verified simulation out. The returned error is either a fatal
// executor failure or an *InvariantViolation.
func Run(data []byte, opts Options) (*Report, error) {
	return RunActions(domain.Decode(data), opts)
}

// RunActions runs an already-decoded action log. Every run gets a fresh
// market and registry; nothing is shared or reused across runs.
func RunActions(actions []domain.Action, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Verbosity >= 1 {
		for i, a := range actions {
			log.Debug("log entry", slog.Int("index", i), slog.String("kind", string(a.Kind)))
		}
	}

	market := dex.NewMarket()
	reg := NewRegistry(market)
	bounds := ComputeBounds(actions)

	exec := NewExecutor(market, reg, log, opts.Verbosity)
	driver := NewDriver(exec, reg, log, opts.ForceCrank)

	if err := driver.Replay(actions); err != nil {
		return nil, err
	}
	if err := driver.Liquidate(); err != nil {
		return nil, err
	}
	if err := Verify(reg, market, bounds); err != nil {
		return nil, err
	}

	report := &Report{
		Owners:          reg.Len(),
		Actions:         exec.Executed(),
		CoinFeesAccrued: market.CoinFeesAccrued(),
		PcFeesAccrued:   market.PcFeesAccrued(),
	}
	if len(exec.Absorbed()) > 0 {
		report.AbsorbedRejections = make(map[string]int, len(exec.Absorbed()))
		for code, n := range exec.Absorbed() {
			report.AbsorbedRejections[string(code)] = n
		}
	}
	return report, nil
}
