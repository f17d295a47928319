// ============================================================================
// coresim CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Drive the scheduling engine from the command line, based on the
// Cobra framework.
//
// Command Structure:
//   coresim                         # Root command
//   ├── run                         # Replay a job trace through one scheme
//   │   ├── --config, -c           # YAML config (scheme, cores, quantum, paths)
//   │   └── --trace, -t            # JSON job trace
//   ├── replay                      # Re-drive a recorded journal
//   │   ├── --journal, -j          # Journal file to read arrivals from
//   │   └── --all-schemes          # Run every scheme against the same arrivals
//   ├── serve                       # Start the HTTP driver + metrics endpoint
//   │   └── --config, -c
//   ├── history                     # List recorded run summaries
//   │   ├── --config, -c
//   │   └── --limit, -n
//   ├── --version
//   └── --help
//
// Configuration:
//   YAML, loaded through internal/config. run/serve/history all accept
//   --config; a missing flag falls back to internal/config.Default().
//
// run Command:
//   1. Load config and job trace.
//   2. Build an Engine for the configured scheme/cores/quantum.
//   3. Drive arrivals, completions and quantum expiries in virtual-time
//      order until every job has finished (see runSimulation).
//   4. Print the three completion averages.
//   5. Optionally append every decision to a journal, write a final
//      snapshot, and record a one-line summary to run history.
//
// replay Command:
//   Reads the ARRIVAL records out of a previously written journal and
//   re-drives them through a fresh Engine, the same way run drives a
//   trace file - useful for regression-testing a scheme's behavior
//   against a fixed, already-recorded set of arrivals. --all-schemes
//   reruns the same arrivals under every scheme and prints a comparison
//   table, mirroring how the original grading harness evaluated a single
//   trace across FCFS/SJF/PSJF/PRI/PPRI/RR.
//
// serve Command:
//   Starts the REST driver (internal/httpapi) on cfg.HTTP.Addr and the
//   Prometheus endpoint (internal/metrics) on cfg.Metrics.Addr, journals
//   every event to cfg.Journal.Path, and shuts down gracefully on
//   SIGINT/SIGTERM.
//
// ============================================================================

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kdesai/coresim/internal/config"
	"github.com/kdesai/coresim/internal/engine"
	"github.com/kdesai/coresim/internal/history"
	"github.com/kdesai/coresim/internal/httpapi"
	"github.com/kdesai/coresim/internal/journal"
	"github.com/kdesai/coresim/internal/metrics"
	"github.com/kdesai/coresim/internal/snapshot"
	"github.com/kdesai/coresim/pkg/job"
)

// BuildCLI assembles the coresim root command and its subcommands.
func BuildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:     "coresim",
		Short:   "coresim: a discrete-event multi-core job scheduler simulator",
		Long:    "coresim drives FCFS, SJF, PSJF, PRI, PPRI and RR scheduling disciplines over a job trace in virtual time and reports waiting, turnaround and response time averages.",
		Version: "1.0.0",
	}

	root.AddCommand(buildRunCommand())
	root.AddCommand(buildReplayCommand())
	root.AddCommand(buildServeCommand())
	root.AddCommand(buildHistoryCommand())

	return root
}

func loadConfigOrDefault(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// traceArrival is one new_job call as read from a trace file or a
// journal's ARRIVAL records.
type traceArrival struct {
	JobID       string `json:"job_id"`
	Time        int64  `json:"t"`
	RunningTime int64  `json:"running_time"`
	Priority    int    `json:"priority"`
}

func loadTrace(path string) ([]traceArrival, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cli: read trace %s: %w", path, err)
	}
	var arrivals []traceArrival
	if err := json.Unmarshal(data, &arrivals); err != nil {
		return nil, fmt.Errorf("cli: parse trace %s: %w", path, err)
	}
	sort.SliceStable(arrivals, func(i, j int) bool { return arrivals[i].Time < arrivals[j].Time })
	return arrivals, nil
}

func loadArrivalsFromJournal(path string) ([]traceArrival, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cli: journal %s: %w", path, err)
	}
	jr, err := journal.Open(path)
	if err != nil {
		return nil, err
	}
	defer jr.Close()

	var arrivals []traceArrival
	err = jr.Replay(func(e journal.Event) error {
		if e.Type == journal.EventArrival {
			arrivals = append(arrivals, traceArrival{
				JobID:       e.JobID,
				Time:        e.Time,
				RunningTime: e.RunningTime,
				Priority:    e.Priority,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cli: replay journal %s: %w", path, err)
	}
	return arrivals, nil
}

// nextCoreEvent finds the busy core whose next event - completion, or for
// RR a quantum expiry, whichever comes first - happens soonest. ok is
// false once every core is idle.
func nextCoreEvent(eng *engine.Engine) (t int64, coreID int, finish, ok bool) {
	state := eng.Snapshot()
	for i, jobID := range state.CoreJobIDs {
		if jobID == "" {
			continue
		}
		j := state.Jobs[jobID]
		candidate := j.StartTime + j.RemainingRunTime
		isFinish := true
		if state.Scheme == job.RR {
			if quantumAt := j.StartTime + state.Quantum; quantumAt < candidate {
				candidate = quantumAt
				isFinish = false
			}
		}
		if !ok || candidate < t {
			t, coreID, finish, ok = candidate, i, isFinish, true
		}
	}
	return t, coreID, finish, ok
}

// runSimulation drives arrivals (consumed in place) through eng in
// virtual-time order until every job has completed, optionally recording
// every decision to jr. Arrivals scheduled for the same instant a core
// event falls due are processed first, so a preemptive scheme gets the
// chance to evict before that core's own event would otherwise fire.
func runSimulation(eng *engine.Engine, jr *journal.Journal, arrivals []traceArrival) error {
	idx := 0
	for {
		coreTime, coreID, finish, hasCore := nextCoreEvent(eng)
		hasArrival := idx < len(arrivals)

		if !hasArrival && !hasCore {
			return nil
		}

		if hasArrival && (!hasCore || arrivals[idx].Time <= coreTime) {
			t := arrivals[idx].Time
			for idx < len(arrivals) && arrivals[idx].Time == t {
				a := arrivals[idx]
				idx++
				core, err := eng.NewJob(a.JobID, a.Time, a.RunningTime, a.Priority)
				if err != nil {
					return fmt.Errorf("cli: new_job %s at t=%d: %w", a.JobID, a.Time, err)
				}
				if jr != nil {
					if err := jr.AppendArrival(a.JobID, a.Time, a.RunningTime, a.Priority); err != nil {
						return err
					}
					if err := jr.Append(journal.EventDecision, a.JobID, core, a.Time); err != nil {
						return err
					}
				}
			}
			continue
		}

		state := eng.Snapshot()
		jobID := state.CoreJobIDs[coreID]

		if finish {
			next, err := eng.JobFinished(coreID, jobID, coreTime)
			if err != nil {
				return fmt.Errorf("cli: job_finished %s on core %d at t=%d: %w", jobID, coreID, coreTime, err)
			}
			if jr != nil {
				if err := jr.Append(journal.EventCompletion, jobID, coreID, coreTime); err != nil {
					return err
				}
				if next != "" {
					if err := jr.Append(journal.EventDecision, next, coreID, coreTime); err != nil {
						return err
					}
				}
			}
			continue
		}

		next, err := eng.QuantumExpired(coreID, coreTime)
		if err != nil {
			return fmt.Errorf("cli: quantum_expired on core %d at t=%d: %w", coreID, coreTime, err)
		}
		if jr != nil {
			if err := jr.Append(journal.EventQuantumExpiry, jobID, coreID, coreTime); err != nil {
				return err
			}
			if next != "" {
				if err := jr.Append(journal.EventDecision, next, coreID, coreTime); err != nil {
					return err
				}
			}
		}
	}
}

func buildRunCommand() *cobra.Command {
	var configPath, tracePath string
	var withJournal, withSnapshot, withHistory bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a job trace through one scheduling scheme",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(configPath, tracePath, withJournal, withSnapshot, withHistory)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults to FCFS, 1 core, quantum 1)")
	cmd.Flags().StringVarP(&tracePath, "trace", "t", "", "JSON job trace file")
	cmd.Flags().BoolVar(&withJournal, "journal", true, "append every decision to the configured journal")
	cmd.Flags().BoolVar(&withSnapshot, "snapshot", true, "write a final run-state snapshot")
	cmd.Flags().BoolVar(&withHistory, "history", true, "record this run's averages to history")
	cmd.MarkFlagRequired("trace")

	return cmd
}

func runTrace(configPath, tracePath string, withJournal, withSnapshot, withHistory bool) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}
	scheme, err := job.ParseScheme(cfg.Run.Scheme)
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg.Run.NumCores, scheme, cfg.Run.Quantum)
	if err != nil {
		return err
	}

	arrivals, err := loadTrace(tracePath)
	if err != nil {
		return err
	}

	var jr *journal.Journal
	if withJournal {
		jr, err = journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("cli: open journal: %w", err)
		}
		defer jr.Close()
	}

	if err := runSimulation(eng, jr, arrivals); err != nil {
		return err
	}

	waiting, _ := eng.AverageWaitingTime()
	turnaround, _ := eng.AverageTurnaroundTime()
	response, _ := eng.AverageResponseTime()
	fmt.Printf("scheme=%s cores=%d average_waiting_time=%.3f average_turnaround_time=%.3f average_response_time=%.3f\n",
		scheme, cfg.Run.NumCores, waiting, turnaround, response)

	if withSnapshot {
		mgr := snapshot.NewManager(cfg.Snapshot.Path)
		if err := mgr.Write(eng.Snapshot()); err != nil {
			return fmt.Errorf("cli: write snapshot: %w", err)
		}
	}

	if withHistory {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("cli: open history: %w", err)
		}
		defer store.Close()

		run := history.Run{
			ID:             uuid.New().String(),
			Scheme:         scheme,
			NumCores:       cfg.Run.NumCores,
			Quantum:        cfg.Run.Quantum,
			NumJobs:        len(arrivals),
			AvgWaiting:     waiting,
			AvgTurnaround:  turnaround,
			AvgResponse:    response,
			RecordedAtUnix: time.Now().Unix(),
		}
		if err := store.RecordRun(context.Background(), run); err != nil {
			return fmt.Errorf("cli: record history: %w", err)
		}
	}

	return nil
}

func buildReplayCommand() *cobra.Command {
	var configPath, journalPath string
	var allSchemes bool

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-drive a recorded journal's arrivals through a fresh engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return replayJournal(configPath, journalPath, allSchemes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file (scheme ignored when --all-schemes is set)")
	cmd.Flags().StringVarP(&journalPath, "journal", "j", "", "journal file to read arrivals from")
	cmd.Flags().BoolVar(&allSchemes, "all-schemes", false, "run the same arrivals under every scheme and compare")
	cmd.MarkFlagRequired("journal")

	return cmd
}

func replayJournal(configPath, journalPath string, allSchemes bool) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}
	arrivals, err := loadArrivalsFromJournal(journalPath)
	if err != nil {
		return err
	}

	schemes := job.AllSchemes
	if !allSchemes {
		scheme, err := job.ParseScheme(cfg.Run.Scheme)
		if err != nil {
			return err
		}
		schemes = []job.Scheme{scheme}
	}

	fmt.Printf("%-6s %10s %13s %11s\n", "SCHEME", "WAITING", "TURNAROUND", "RESPONSE")
	for _, scheme := range schemes {
		eng, err := engine.New(cfg.Run.NumCores, scheme, cfg.Run.Quantum)
		if err != nil {
			return err
		}
		trace := append([]traceArrival(nil), arrivals...)
		if err := runSimulation(eng, nil, trace); err != nil {
			return fmt.Errorf("cli: replay under %s: %w", scheme, err)
		}
		waiting, _ := eng.AverageWaitingTime()
		turnaround, _ := eng.AverageTurnaroundTime()
		response, _ := eng.AverageResponseTime()
		fmt.Printf("%-6s %10.3f %13.3f %11.3f\n", scheme, waiting, turnaround, response)
	}
	return nil
}

func buildServeCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scheduling engine over HTTP with a Prometheus endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	return cmd
}

func serve(configPath string) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}
	scheme, err := job.ParseScheme(cfg.Run.Scheme)
	if err != nil {
		return err
	}
	eng, err := engine.New(cfg.Run.NumCores, scheme, cfg.Run.Quantum)
	if err != nil {
		return err
	}

	jr, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("cli: open journal: %w", err)
	}
	defer jr.Close()

	collector := metrics.NewCollector()

	srv := httpapi.New(eng, jr, collector)

	go func() {
		log.Printf("metrics listening on %s/metrics\n", cfg.Metrics.Addr)
		if err := collector.StartServer(cfg.Metrics.Addr); err != nil {
			log.Printf("metrics server stopped: %v\n", err)
		}
	}()

	go func() {
		log.Printf("coresim API listening on %s\n", cfg.HTTP.Addr)
		if err := http.ListenAndServe(cfg.HTTP.Addr, srv.Router()); err != nil {
			log.Printf("API server stopped: %v\n", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("shutting down")
	return nil
}

func buildHistoryCommand() *cobra.Command {
	var configPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently recorded simulation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(configPath, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of runs to list")
	return cmd
}

func showHistory(configPath string, limit int) error {
	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return fmt.Errorf("cli: open history: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded yet")
		return nil
	}

	fmt.Printf("%-36s %-6s %5s %8s %5s %10s %10s %10s\n",
		"ID", "SCHEME", "CORES", "QUANTUM", "JOBS", "WAITING", "TURNAROUND", "RESPONSE")
	for _, r := range runs {
		fmt.Printf("%-36s %-6s %5d %8d %5d %10.3f %10.3f %10.3f\n",
			r.ID, r.Scheme, r.NumCores, r.Quantum, r.NumJobs, r.AvgWaiting, r.AvgTurnaround, r.AvgResponse)
	}
	return nil
}
