// ════════════════════════════════════════════════════════════════════════════════════════════════
// Hook-Match Engine - Main Entry Point
// ────────────────────────────────────────────────────────────────────────────────────────────────
// Project: Hard-Budget Event Matching Engine
// Component: Main Entry Point & System Orchestration
//
// Description:
//   System orchestration with phased initialization and clean separation of concerns.
//   Load → Register → Pinned Lanes → Signal-Driven Shutdown
//
// Architecture:
//   - Phase 0: Configuration, audit chain, and hook catalog loading
//   - Phase 1: Registry commit and dispatch table validation
//   - Phase 2: Memory cleanup before entering steady state
//   - Phase 3: Pinned-lane processing until interrupt
//
// ════════════════════════════════════════════════════════════════════════════════════════════════

package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime"
	rtdebug "runtime/debug"
	"syscall"

	"github.com/sugawarayuuta/sonnet"
	"go.opentelemetry.io/otel"

	"main/config"
	"main/debug"
	"main/dispatch"
	"main/hookset"
	"main/lane"
	"main/lockchain"
	"main/metrics"
	otelexport "main/metrics/export/otel"
	"main/pool"
	"main/receipt"
	"main/types"
	"main/utils"
)

// hookSpec is the on-disk form of one hook in the JSON catalog.
type hookSpec struct {
	ID        uint32   `json:"id"`
	Kind      string   `json:"kind"`
	Name      string   `json:"name"`
	Subject   uint64   `json:"subject"`
	Predicate uint64   `json:"predicate"`
	Object    uint64   `json:"object"`
	Branches  []uint32 `json:"branches"`
}

// main orchestrates the complete engine lifecycle in distinct phases.
func main() {
	cfgPath := flag.String("config", "", "engine YAML config (defaults apply when empty)")
	flag.Parse()

	// PHASE 0: Configuration and persistent state
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		debug.DropError("CONFIG", err)
		os.Exit(1)
	}
	debug.DropMessage("INIT", utils.Itoa(cfg.Lanes)+" lanes, budget "+utils.Utoa64(cfg.TickBudget)+" ticks, kernel "+cfg.Kernel)

	var sink receipt.Sink
	var chain *lockchain.Store
	if cfg.LockchainPath != "" {
		chain, err = lockchain.Open(cfg.LockchainPath)
		if err != nil {
			debug.DropError("LOCKCHAIN", err)
			os.Exit(1)
		}
		sink = chain
		debug.DropMessage("LOCKCHAIN", "Chain open at "+cfg.LockchainPath)
	}

	hooks := hookset.NewRegistry()
	maxBranch := uint32(0)
	if cfg.HooksFile != "" {
		specs := loadHookCatalog(cfg.HooksFile)
		for _, s := range specs {
			kind, ok := parseOpKind(s.Kind)
			if !ok {
				debug.DropMessage("HOOK_SKIP", s.Name+": unknown kind "+s.Kind)
				continue
			}
			if err := hooks.Register(types.HookEntry{
				ID: s.ID, Kind: kind, Name: s.Name,
				Subject: s.Subject, Predicate: s.Predicate, Object: s.Object,
				Branches: s.Branches,
			}); err != nil {
				debug.DropError("HOOK_REGISTER", err)
				continue
			}
			for _, b := range s.Branches {
				if b > maxBranch {
					maxBranch = b
				}
			}
		}
		debug.DropMessage("LOADED", utils.Itoa(len(specs))+" hooks from "+cfg.HooksFile)
	}

	// PHASE 1: Commit the first epoch and validate dispatch wiring
	snap := hooks.Commit()
	tbl := dispatch.NewTable(int(maxBranch))
	for b := uint32(0); b <= maxBranch; b++ {
		tbl.Bind(b, logHandler)
	}
	if err := tbl.Validate(snap.Hooks); err != nil {
		debug.DropError("DISPATCH", err)
		os.Exit(1)
	}
	debug.DropMessage("EPOCH", "Snapshot "+utils.Utoa64(snap.Epoch)+" live with "+utils.Itoa(len(snap.Hooks))+" hooks")

	reg := metrics.NewRegistry()

	// The exporter observes the registry through the process-global meter
	// provider; deployments install their reader before exec-ing us.
	var exporter *otelexport.Exporter
	if cfg.OtelMetrics {
		exporter, err = otelexport.New(otel.Meter("hookmatch"), reg)
		if err != nil {
			debug.DropError("OTEL", err)
			os.Exit(1)
		}
		debug.DropMessage("OTEL", "Metrics registered on global meter provider")
	}

	engine := lane.New(lane.Options{
		Lanes:         cfg.Lanes,
		Kernel:        cfg.MatcherKernel(),
		CrossCheck:    cfg.CrossCheck,
		TickBudget:    cfg.TickBudget,
		PoolSlots:     cfg.Pool.Slots,
		PoolPolicy:    poolPolicy(cfg.Pool.Policy),
		PoolSpin:      cfg.Pool.SpinCap,
		ReceiptBuffer: cfg.Receipt.Buffer,
		ReceiptPolicy: receiptPolicy(cfg.Receipt.Policy),
		ReceiptSink:   sink,
		WarmBuffer:    cfg.Warm.Buffer,
		WarmWorkers:   cfg.Warm.Workers,
		DedupeWindow:  cfg.DedupeWindow,
	}, hooks, tbl, reg)

	// PHASE 2: Memory consolidation before steady state
	runtime.GC()
	rtdebug.FreeOSMemory()

	// PHASE 3: Pinned lanes until interrupt
	engine.Start(0)
	debug.DropMessage("READY", "Engine running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	debug.DropMessage("SIGNAL", "Received interrupt, shutting down...")

	engine.Close()
	if exporter != nil {
		if err := exporter.Close(); err != nil {
			debug.DropError("OTEL", err)
		}
	}
	if chain != nil {
		if err := chain.Verify(); err != nil {
			debug.DropError("LOCKCHAIN_VERIFY", err)
		}
		chain.Close()
	}
	snapm := reg.SnapshotNow()
	debug.DropMessage("FINAL", utils.Utoa64(snapm.Counters[metrics.EventsIngressed])+" ingressed, "+
		utils.Utoa64(snapm.Counters[metrics.EventsMatched])+" matched, "+
		utils.Utoa64(snapm.Counters[metrics.Demotions])+" demoted")
}

// logHandler is the default branch handler: confirm receipt of the fan-out
// and report it on the cold diagnostic stream.  Deployments replace it via
// dispatch.Table.Bind before Start.
func logHandler(branch uint32, ev *types.Event) bool {
	debug.DropMessage("BRANCH", utils.Itoa(int(branch))+" ← "+utils.Utoa64(ev.Subject))
	return true
}

// loadHookCatalog parses the JSON hook file.
func loadHookCatalog(path string) []hookSpec {
	data, err := os.ReadFile(path)
	if err != nil {
		debug.DropError("HOOKS_FILE", err)
		os.Exit(1)
	}
	var specs []hookSpec
	if err := sonnet.Unmarshal(data, &specs); err != nil {
		debug.DropError("HOOKS_PARSE", err)
		os.Exit(1)
	}
	return specs
}

func parseOpKind(s string) (types.OpKind, bool) {
	switch s {
	case "discriminator":
		return types.OpDiscriminator, true
	case "parallel_split":
		return types.OpParallelSplit, true
	case "synchronization":
		return types.OpSynchronization, true
	}
	return 0, false
}

func poolPolicy(s string) pool.Policy {
	if s == "spin" {
		return pool.PolicySpin
	}
	return pool.PolicyReject
}

func receiptPolicy(s string) receipt.Policy {
	if s == "drop_oldest" {
		return receipt.PolicyDropOldest
	}
	return receipt.PolicyRejectNew
}
