// Package simlog implements the fourteen named CSV log sinks: one
// append-only, rotating file per category, every row starting nodeID,
// simulationTime, direction (one of r/s/t for received/sent/timer-driven).
//
// Grounded on the teacher's internal/replay.Writer (append-then-rotate
// writer keyed by category, flushed through a single mutex-guarded file
// handle) and internal/replay.Cleaner (age/size based retention), but
// retargeted from snappy/zstd-compressed JSONL+binary frames to plain
// CSV rows; CSV needs none of that framing, so this package reuses
// internal/logging's gzip-backed rotation helper (NewRotatingFile)
// instead of duplicating internal/replay's compression path.
package simlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sart-mesh/rntp/internal/logging"
	"github.com/sart-mesh/rntp/internal/wire"
)

// Category names one of the fourteen sinks.
type Category int

const (
	CatMsgInterest Category = iota
	CatMsgInterestBroadcast
	CatMsgCapsule
	CatMsgCapAck
	CatMsgEcho
	CatConsumer
	CatConsumerQueueSize
	CatConsumerReseq
	CatProducer
	CatRoutes
	CatCongestionControl
	CatBuffer
	CatEnergy
	CatOthers
)

var categoryFileNames = map[Category]string{
	CatMsgInterest:          "logMsgInterest",
	CatMsgInterestBroadcast: "logMsgInterestBroadcast",
	CatMsgCapsule:           "logMsgCapsule",
	CatMsgCapAck:            "logMsgCapAck",
	CatMsgEcho:              "logMsgEcho",
	CatConsumer:             "logConsumer",
	CatConsumerQueueSize:    "logConsumerQueueSize",
	CatConsumerReseq:        "logConsumerReseq",
	CatProducer:             "logProducer",
	CatRoutes:               "logRoutes",
	CatCongestionControl:    "logCongestionControl",
	CatBuffer:               "logBuffer",
	CatEnergy:               "logEnergy",
	CatOthers:               "logOthers",
}

// Direction is the third column of every row.
type Direction byte

const (
	DirRecv  Direction = 'r'
	DirSend  Direction = 's'
	DirTimer Direction = 't'
)

// Sinks owns one rotating CSV file per category for a single node.
type Sinks struct {
	self wire.NodeID
	now  func() float64

	mu    sync.Mutex
	files map[Category]logging.RotatingFile
}

// Options bundles the rotation policy shared by every sink file.
type Options struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultMaxSizeMB applies when Options.MaxSizeMB is left unset; the
// underlying rotation writer rejects a non-positive size.
const DefaultMaxSizeMB = 64

// New opens every category's CSV file under dir, creating dir if needed.
// now is called once per recorded row to stamp the simulation-time
// column; it is typically sched.Now from the node's clock.Scheduler.
func New(dir string, self wire.NodeID, now func() float64, opts Options) (*Sinks, error) {
	if opts.MaxSizeMB <= 0 {
		opts.MaxSizeMB = DefaultMaxSizeMB
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir %q: %w", dir, err)
	}
	files := make(map[Category]logging.RotatingFile, len(categoryFileNames))
	for cat, name := range categoryFileNames {
		path := filepath.Join(dir, name+".csv")
		f, err := logging.NewRotatingFile(path, opts.MaxSizeMB, opts.MaxBackups, opts.MaxAgeDays, opts.Compress)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return nil, fmt.Errorf("open %s sink: %w", name, err)
		}
		files[cat] = f
	}
	return &Sinks{self: self, now: now, files: files}, nil
}

// Record appends one row to cat's file: nodeID, simulationTime,
// direction, then every field verbatim (CSV-escaped if it contains a
// comma, quote or newline).
func (s *Sinks) Record(cat Category, dir Direction, fields ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[cat]
	if !ok {
		return
	}
	var b strings.Builder
	b.WriteString(strconv.FormatUint(uint64(s.self), 10))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(s.currentTime(), 'f', 6, 64))
	b.WriteByte(',')
	b.WriteByte(byte(dir))
	for _, field := range fields {
		b.WriteByte(',')
		b.WriteString(csvEscape(field))
	}
	b.WriteByte('\n')
	f.Write([]byte(b.String()))
}

// LogEnergy appends one row to the energy sink, mirroring the shape of
// original_source/ns-3's logEnergy lines (nodeID, simTime, direction,
// state label, then the consumed and remaining energy): state is "CurRemain" for a running
// per-send deduction or "Final" for the end-of-run summary, consumedJ and
// remainingJ are both in joules.
func (s *Sinks) LogEnergy(state string, consumedJ, remainingJ float64) {
	s.Record(CatEnergy, DirTimer, state,
		strconv.FormatFloat(consumedJ, 'f', 6, 64),
		strconv.FormatFloat(remainingJ, 'f', 6, 64))
}

func (s *Sinks) currentTime() float64 {
	if s.now == nil {
		return 0
	}
	return s.now()
}

func csvEscape(field string) string {
	if !strings.ContainsAny(field, ",\"\n") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// Sync flushes every sink file.
func (s *Sinks) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes and releases every sink file.
func (s *Sinks) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
