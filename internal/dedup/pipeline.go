package dedup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/thesavant42/warc-dedup/internal/api"
	"github.com/thesavant42/warc-dedup/internal/models"
	"github.com/thesavant42/warc-dedup/internal/oplog"
	"github.com/thesavant42/warc-dedup/internal/warc"
)

// Resolver resolves dedup keys against the remote index. store is called
// once per key and may be called concurrently.
type Resolver interface {
	ResolveAll(ctx context.Context, keys []models.DedupKey, store func(models.DedupKey, models.LookupResult))
}

// Phase is the stage a pipeline run has reached
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseScan
	PhaseLookup
	PhaseRewrite
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScan:
		return "scanning"
	case PhaseLookup:
		return "looking up"
	case PhaseRewrite:
		return "rewriting"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress is a snapshot of a running pipeline
type Progress struct {
	Phase    Phase
	Records  int64 // records read in the current pass
	Keys     int64 // distinct keys registered
	Resolved int64 // keys with a lookup result
}

// Options configures a Pipeline
type Options struct {
	Target string      // output path; derived from the source name when empty
	Log    *oplog.Log  // operation log; a new one is created when nil
	Logger *log.Logger // may be nil
}

// Pipeline deduplicates one WARC file in two passes over the source
type Pipeline struct {
	source   string
	target   string
	resolver Resolver
	registry *Registry
	oplog    *oplog.Log
	logger   *log.Logger

	phase    atomic.Int32
	records  atomic.Int64
	resolved atomic.Int64
}

// NewPipeline prepares a run for source. It fails with warc.ErrTargetExists
// when the target is already present, before the source is opened.
func NewPipeline(source string, resolver Resolver, opts Options) (*Pipeline, error) {
	target := opts.Target
	if target == "" {
		derived, err := warc.TargetPath(source)
		if err != nil {
			return nil, err
		}
		target = derived
	}

	oplg := opts.Log
	if oplg == nil {
		oplg = oplog.New(opts.Logger)
	}

	p := &Pipeline{
		source:   source,
		target:   target,
		resolver: resolver,
		registry: NewRegistry(),
		oplog:    oplg,
		logger:   opts.Logger,
	}

	p.oplog.Logf("Original WARC file is %s.", source)
	p.oplog.Logf("Deduplicated WARC file is %s.", target)

	if err := warc.EnsureTargetAbsent(target); err != nil {
		p.oplog.Logf("File %s already exists.", target)
		return nil, err
	}

	return p, nil
}

// Target returns the output path
func (p *Pipeline) Target() string {
	return p.target
}

// Registry returns the key registry
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Log returns the operation log
func (p *Pipeline) Log() *oplog.Log {
	return p.oplog
}

// Progress returns a snapshot of the run's progress. Safe to call from
// another goroutine while Run executes.
func (p *Pipeline) Progress() Progress {
	return Progress{
		Phase:    Phase(p.phase.Load()),
		Records:  p.records.Load(),
		Keys:     int64(p.registry.Len()),
		Resolved: p.resolved.Load(),
	}
}

func (p *Pipeline) setPhase(phase Phase) {
	p.phase.Store(int32(phase))
	p.records.Store(0)
	if p.logger != nil {
		p.logger.Info("Pipeline phase", "phase", phase, "source", p.source)
	}
}

// Run scans the source, resolves every response key, then writes the
// deduplicated target. On failure the partial target is removed.
func (p *Pipeline) Run(ctx context.Context) (models.DedupStats, error) {
	p.oplog.Log("Start deduplication process.")

	p.setPhase(PhaseScan)
	if err := p.scan(); err != nil {
		return models.DedupStats{}, err
	}

	p.setPhase(PhaseLookup)
	if err := p.lookup(ctx); err != nil {
		return models.DedupStats{}, err
	}

	p.setPhase(PhaseRewrite)
	stats, err := p.rewrite()
	if err != nil {
		return models.DedupStats{}, err
	}

	p.setPhase(PhaseDone)
	return stats, nil
}

// eachRecord opens the source and calls fn for every record in order
func (p *Pipeline) eachRecord(fn func(*warc.Record) error) error {
	f, err := os.Open(p.source)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	r, err := warc.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p.source, err)
	}
	defer r.Close()

	for {
		rec, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p.source, err)
		}
		p.records.Add(1)
		if err := fn(rec); err != nil {
			return err
		}
	}
}

// scan registers the key of every response record
func (p *Pipeline) scan() error {
	return p.eachRecord(func(rec *warc.Record) error {
		if rec.Type() == warc.TypeResponse {
			p.registry.Register(KeyFor(rec))
		}
		return nil
	})
}

// lookup resolves all registered keys. It returns only once every key has a
// result.
func (p *Pipeline) lookup(ctx context.Context) error {
	keys := p.registry.Keys()
	p.oplog.Logf("Fetching dedupe info from CDX API for %d keys.", len(keys))

	var mu sync.Mutex
	var storeErr error

	p.resolver.ResolveAll(ctx, keys, func(key models.DedupKey, result models.LookupResult) {
		if err := p.registry.SetResult(key, result); err != nil {
			mu.Lock()
			if storeErr == nil {
				storeErr = err
			}
			mu.Unlock()
			return
		}
		p.resolved.Add(1)
	})

	if storeErr != nil {
		return storeErr
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("lookup phase interrupted: %w", err)
	}
	if missing := p.registry.Unresolved(); len(missing) > 0 {
		return fmt.Errorf("lookup phase left %d keys unresolved, first %s", len(missing), missing[0])
	}

	p.oplog.Log("Fetched dedupe info from CDX API.")
	return nil
}

// rewrite streams the source to the target, substituting revisit records
func (p *Pipeline) rewrite() (stats models.DedupStats, err error) {
	out, err := os.OpenFile(p.target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return stats, fmt.Errorf("%w: %s", warc.ErrTargetExists, p.target)
		}
		return stats, fmt.Errorf("failed to create target: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close target: %w", cerr)
		}
		if err != nil {
			os.Remove(p.target)
		}
	}()

	w := warc.NewWriter(out, warc.IsCompressedName(p.target))
	stats = models.NewDedupStats()

	err = p.eachRecord(func(rec *warc.Record) error {
		stats.Records++
		return p.rewriteRecord(w, rec, &stats)
	})
	if err != nil {
		return stats, err
	}

	p.oplog.Log("Writing log to WARC.")
	if err := w.WriteRecord(p.oplog.Record()); err != nil {
		return stats, fmt.Errorf("failed to write log record: %w", err)
	}

	return stats, nil
}

func (p *Pipeline) rewriteRecord(w *warc.Writer, rec *warc.Record, stats *models.DedupStats) error {
	recordID := rec.RecordID()
	p.oplog.Logf("Processing record %s.", recordID)

	if uri, changed := UnwrapURI(rec.TargetURI()); changed {
		p.oplog.Logf("Replacing URL in record %s with %s.", recordID, uri)
		rec.Header.Set(warc.FieldTargetURI, uri)
	}

	switch rec.Type() {
	case warc.TypeResponse:
		p.oplog.Logf("Deduplicating record %s.", recordID)
		key := KeyFor(rec)
		result, err := p.registry.Get(key)
		if err != nil {
			return err
		}

		var httpHeader []byte
		if result.IsMatched() && isHTTP(rec) {
			var ok bool
			if httpHeader, ok = rec.HTTPHeader(); !ok {
				result = models.LookupFailed(models.ReasonHTTPHeader)
			}
		}
		stats.CountResponse(api.HostKey(key.URI), result)

		if result.IsMatched() {
			p.oplog.Logf("Record %s is a duplicate from %s.", recordID, result)
			return w.WriteRecord(BuildRevisit(rec, httpHeader, *result.Capture))
		}

		if result.Status == models.StatusLookupFailed {
			p.oplog.Logf("Record %s could not be deduplicated (%s).", recordID, result.Reason)
		} else {
			p.oplog.Logf("Record %s is not a duplicate.", recordID)
		}
		return w.WriteRecord(rec)

	case warc.TypeWarcinfo:
		p.oplog.Associate(recordID)
		rec.Header.Set(warc.FieldFilename, p.target)
		return w.WriteRecord(rec)

	default:
		return w.WriteRecord(rec)
	}
}

// isHTTP reports whether the record block is an HTTP message
func isHTTP(rec *warc.Record) bool {
	contentType := strings.ToLower(rec.Header.Get(warc.FieldContentType))
	return strings.HasPrefix(contentType, "application/http")
}
