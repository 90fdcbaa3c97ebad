package dedup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thesavant42/warc-dedup/internal/models"
	"github.com/thesavant42/warc-dedup/internal/oplog"
	"github.com/thesavant42/warc-dedup/internal/warc"
)

const httpBlock = "HTTP/1.1 200 OK\r\nContent-Type: text/html\r\n\r\n<html>hi</html>"

func rawRecord(fields [][2]string, block string) string {
	var b strings.Builder
	b.WriteString("WARC/1.0\r\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: %s\r\n", f[0], f[1])
	}
	fmt.Fprintf(&b, "Content-Length: %d\r\n\r\n", len(block))
	b.WriteString(block)
	b.WriteString("\r\n\r\n")
	return b.String()
}

func warcinfoRecord(id string) string {
	return rawRecord([][2]string{
		{"WARC-Type", "warcinfo"},
		{"WARC-Record-ID", id},
		{"WARC-Date", "2020-01-01T00:00:00Z"},
		{"WARC-Filename", "in.warc"},
		{"Content-Type", "application/warc-fields"},
	}, "software: test\r\n")
}

func responseRecord(id, uri, digest string) string {
	return rawRecord([][2]string{
		{"WARC-Type", "response"},
		{"WARC-Record-ID", id},
		{"WARC-Date", "2020-01-01T00:00:00Z"},
		{"WARC-Target-URI", uri},
		{"WARC-Payload-Digest", digest},
		{"Content-Type", "application/http; msgtype=response"},
	}, httpBlock)
}

func requestRecord(id, uri string) string {
	return rawRecord([][2]string{
		{"WARC-Type", "request"},
		{"WARC-Record-ID", id},
		{"WARC-Date", "2020-01-01T00:00:00Z"},
		{"WARC-Target-URI", uri},
		{"Content-Type", "application/http; msgtype=request"},
	}, "GET / HTTP/1.1\r\nHost: e.com\r\n\r\n")
}

// fakeResolver answers from a fixed table; unknown keys get no prior capture
type fakeResolver struct {
	mu      sync.Mutex
	results map[models.DedupKey]models.LookupResult
	seen    []models.DedupKey
	skip    map[models.DedupKey]bool
}

func (f *fakeResolver) ResolveAll(ctx context.Context, keys []models.DedupKey, store func(models.DedupKey, models.LookupResult)) {
	for _, k := range keys {
		f.mu.Lock()
		f.seen = append(f.seen, k)
		f.mu.Unlock()
		if f.skip[k] {
			continue
		}
		result, ok := f.results[k]
		if !ok {
			result = models.NoPriorCapture()
		}
		store(k, result)
	}
}

type outRecord struct {
	header *warc.Header
	block  []byte
}

func readAll(t *testing.T, path string) []outRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := warc.NewReader(f)
	require.NoError(t, err)
	defer r.Close()

	var out []outRecord
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		block, err := io.ReadAll(rec.Content)
		require.NoError(t, err)
		out = append(out, outRecord{header: rec.Header, block: block})
	}
}

func writeSource(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	a := models.NewDedupKey("sha1:A", "http://e.com/a")
	b := models.NewDedupKey("sha1:B", "http://e.com/b")

	r.Register(a)
	r.Register(b)
	r.Register(a)
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []models.DedupKey{a, b}, r.Keys())
	assert.Equal(t, []models.DedupKey{a, b}, r.Unresolved())

	require.NoError(t, r.SetResult(a, models.NoPriorCapture()))
	assert.ErrorIs(t, r.SetResult(a, models.LookupFailed(models.ReasonNoResponse)), ErrResultAlreadySet)
	assert.Equal(t, []models.DedupKey{b}, r.Unresolved())

	got, err := r.Get(a)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNoPriorCapture, got.Status)

	unknown := models.NewDedupKey("sha1:C", "http://e.com/c")
	_, err = r.Get(unknown)
	assert.ErrorIs(t, err, ErrKeyNotRegistered)
	assert.ErrorIs(t, r.SetResult(unknown, models.NoPriorCapture()), ErrKeyNotRegistered)
}

func TestRegistryConcurrentSet(t *testing.T) {
	r := NewRegistry()
	var keys []models.DedupKey
	for i := 0; i < 50; i++ {
		k := models.NewDedupKey(fmt.Sprintf("sha1:%d", i), "http://e.com/")
		keys = append(keys, k)
		r.Register(k)
	}

	var wg sync.WaitGroup
	for _, k := range keys {
		wg.Add(1)
		go func(k models.DedupKey) {
			defer wg.Done()
			assert.NoError(t, r.SetResult(k, models.NoPriorCapture()))
		}(k)
	}
	wg.Wait()
	assert.Empty(t, r.Unresolved())
}

func TestUnwrapURI(t *testing.T) {
	uri, changed := UnwrapURI("<http://e.com/>")
	assert.True(t, changed)
	assert.Equal(t, "http://e.com/", uri)

	uri, changed = UnwrapURI("http://e.com/")
	assert.False(t, changed)
	assert.Equal(t, "http://e.com/", uri)

	_, changed = UnwrapURI("<>")
	assert.False(t, changed)
}

func TestBuildRevisit(t *testing.T) {
	r, err := warc.NewReader(strings.NewReader(responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X")))
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	rec.Header.Set(warc.FieldBlockDigest, "sha1:BLOCK")

	capture := models.Capture{
		Date:     time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
		URI:      "http://e.com/1-orig",
		RecordID: "<urn:uuid:prior>",
	}
	revisit := BuildRevisit(rec, []byte("HTTP/1.1 200 OK\r\n\r\n"), capture)

	h := revisit.Header
	assert.Equal(t, warc.TypeRevisit, h.Get(warc.FieldType))
	assert.Equal(t, "2019-01-01T00:00:00Z", h.Get(warc.FieldRefersToDate))
	assert.Equal(t, "http://e.com/1-orig", h.Get(warc.FieldRefersToTargetURI))
	assert.Equal(t, "<urn:uuid:prior>", h.Get(warc.FieldRefersTo))
	assert.Equal(t, "length", h.Get(warc.FieldTruncated))
	assert.Equal(t, ProfileIdenticalPayloadDigest, h.Get(warc.FieldProfile))
	assert.Equal(t, "sha1:X", h.Get(warc.FieldPayloadDigest))
	assert.Equal(t, "<urn:uuid:a>", h.Get(warc.FieldRecordID))
	assert.False(t, h.Has(warc.FieldBlockDigest))
	assert.False(t, h.Has(warc.FieldContentLength))

	// original untouched
	assert.Equal(t, warc.TypeResponse, rec.Type())
	assert.Equal(t, "sha1:BLOCK", rec.Header.Get(warc.FieldBlockDigest))

	block, err := io.ReadAll(revisit.Content)
	require.NoError(t, err)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\n", string(block))

	capture.RecordID = ""
	assert.False(t, BuildRevisit(rec, nil, capture).Header.Has(warc.FieldRefersTo))
}

func TestPipelineEndToEnd(t *testing.T) {
	source := writeSource(t, "crawl.warc",
		warcinfoRecord("<urn:uuid:info>")+
			requestRecord("<urn:uuid:req>", "http://e.com/1")+
			responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X")+
			responseRecord("<urn:uuid:b>", "http://e.com/2", "sha1:Y"))

	keyA := models.NewDedupKey("sha1:X", "http://e.com/1")
	resolver := &fakeResolver{results: map[models.DedupKey]models.LookupResult{
		keyA: models.Matched(models.Capture{
			Date: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			URI:  "http://e.com/1-orig",
		}),
	}}

	p, err := NewPipeline(source, resolver, Options{})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Target(), "crawl.deduplicated.warc"))

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Records)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, 1, stats.Passthrough)
	assert.Equal(t, 1, stats.NoPrior)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, stats.Hosts["e.com"].Matched+stats.Hosts["e.com"].Passthrough)
	assert.Equal(t, PhaseDone, p.Progress().Phase)
	assert.Len(t, resolver.seen, 2)

	out := readAll(t, p.Target())
	require.Len(t, out, 5)

	info := out[0]
	assert.Equal(t, warc.TypeWarcinfo, info.header.Get(warc.FieldType))
	assert.Equal(t, p.Target(), info.header.Get(warc.FieldFilename))

	assert.Equal(t, warc.TypeRequest, out[1].header.Get(warc.FieldType))

	revisit := out[2]
	assert.Equal(t, warc.TypeRevisit, revisit.header.Get(warc.FieldType))
	assert.Equal(t, "<urn:uuid:a>", revisit.header.Get(warc.FieldRecordID))
	assert.Equal(t, "2019-01-01T00:00:00Z", revisit.header.Get(warc.FieldRefersToDate))
	assert.Equal(t, "http://e.com/1-orig", revisit.header.Get(warc.FieldRefersToTargetURI))
	assert.Equal(t, ProfileIdenticalPayloadDigest, revisit.header.Get(warc.FieldProfile))
	assert.Equal(t, "length", revisit.header.Get(warc.FieldTruncated))
	assert.True(t, strings.HasPrefix(string(revisit.block), "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, string(revisit.block), "Content-Type: text/html")
	assert.NotContains(t, string(revisit.block), "<html>")

	passthrough := out[3]
	assert.Equal(t, warc.TypeResponse, passthrough.header.Get(warc.FieldType))
	assert.Equal(t, "<urn:uuid:b>", passthrough.header.Get(warc.FieldRecordID))
	assert.Equal(t, httpBlock, string(passthrough.block))

	logRec := out[4]
	assert.Equal(t, warc.TypeResource, logRec.header.Get(warc.FieldType))
	assert.Equal(t, oplog.LogURI, logRec.header.Get(warc.FieldTargetURI))
	assert.Equal(t, "<urn:uuid:info>", logRec.header.Get(warc.FieldWarcinfoID))
	logText := string(logRec.block)
	assert.Contains(t, logText, "Record <urn:uuid:a> is a duplicate from")
	assert.Contains(t, logText, "Record <urn:uuid:b> is not a duplicate.")
	assert.Contains(t, logText, "Writing log to WARC.")
}

func TestPipelinePassthroughKeepsRecords(t *testing.T) {
	records := requestRecord("<urn:uuid:req>", "http://e.com/1") +
		responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X")
	source := writeSource(t, "plain.warc", records)

	p, err := NewPipeline(source, &fakeResolver{}, Options{})
	require.NoError(t, err)
	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Matched)

	in := readAll(t, source)
	out := readAll(t, p.Target())
	require.Len(t, out, 3)
	for i := range in {
		for _, f := range in[i].header.Fields() {
			assert.Equal(t, f.Value, out[i].header.Get(f.Name), "record %d field %s", i, f.Name)
		}
		assert.Equal(t, in[i].block, out[i].block)
	}
	// no warcinfo, so the log record is not associated
	assert.False(t, out[2].header.Has(warc.FieldWarcinfoID))
}

func TestPipelineRepeatedKeyResolvedOnce(t *testing.T) {
	source := writeSource(t, "repeat.warc",
		responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X")+
			responseRecord("<urn:uuid:b>", "http://e.com/1", "sha1:X"))

	key := models.NewDedupKey("sha1:X", "http://e.com/1")
	resolver := &fakeResolver{results: map[models.DedupKey]models.LookupResult{
		key: models.Matched(models.Capture{
			Date: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			URI:  "http://e.com/1-orig",
		}),
	}}

	p, err := NewPipeline(source, resolver, Options{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []models.DedupKey{key}, resolver.seen)
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 0, stats.Passthrough)

	out := readAll(t, p.Target())
	require.Len(t, out, 3)
	for i, id := range []string{"<urn:uuid:a>", "<urn:uuid:b>"} {
		assert.Equal(t, warc.TypeRevisit, out[i].header.Get(warc.FieldType))
		assert.Equal(t, id, out[i].header.Get(warc.FieldRecordID))
		assert.Equal(t, "http://e.com/1-orig", out[i].header.Get(warc.FieldRefersToTargetURI))
	}
}

func TestPipelineOversizedHTTPHeaderPassesThrough(t *testing.T) {
	block := "HTTP/1.1 200 OK\r\nX-Big: " + strings.Repeat("a", warc.MaxHTTPHeaderSize) + "\r\n\r\nhi"
	source := writeSource(t, "bigheader.warc", rawRecord([][2]string{
		{"WARC-Type", "response"},
		{"WARC-Record-ID", "<urn:uuid:a>"},
		{"WARC-Date", "2020-01-01T00:00:00Z"},
		{"WARC-Target-URI", "http://e.com/1"},
		{"WARC-Payload-Digest", "sha1:X"},
		{"Content-Type", "application/http; msgtype=response"},
	}, block))

	key := models.NewDedupKey("sha1:X", "http://e.com/1")
	p, err := NewPipeline(source, &fakeResolver{results: map[models.DedupKey]models.LookupResult{
		key: models.Matched(models.Capture{
			Date: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			URI:  "http://e.com/1",
		}),
	}}, Options{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Matched)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Passthrough)

	out := readAll(t, p.Target())
	require.Len(t, out, 2)
	assert.Equal(t, warc.TypeResponse, out[0].header.Get(warc.FieldType))
	assert.Equal(t, block, string(out[0].block))
	assert.Contains(t, string(out[1].block), "could not be deduplicated (unreadable HTTP header)")
}

func TestPipelineFailedLookupPassesThrough(t *testing.T) {
	source := writeSource(t, "failed.warc", responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X"))
	key := models.NewDedupKey("sha1:X", "http://e.com/1")

	p, err := NewPipeline(source, &fakeResolver{results: map[models.DedupKey]models.LookupResult{
		key: models.LookupFailed(models.ReasonRobotsBlocked),
	}}, Options{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Passthrough)

	out := readAll(t, p.Target())
	require.Len(t, out, 2)
	assert.Equal(t, warc.TypeResponse, out[0].header.Get(warc.FieldType))
	assert.Contains(t, string(out[1].block), "could not be deduplicated")
}

func TestPipelineUnwrapsBracketedURI(t *testing.T) {
	source := writeSource(t, "brackets.warc", responseRecord("<urn:uuid:a>", "<http://e.com/1>", "sha1:X"))
	key := models.NewDedupKey("sha1:X", "http://e.com/1")

	resolver := &fakeResolver{results: map[models.DedupKey]models.LookupResult{
		key: models.Matched(models.Capture{
			Date: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			URI:  "http://e.com/1",
		}),
	}}
	p, err := NewPipeline(source, resolver, Options{})
	require.NoError(t, err)

	stats, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Matched)
	assert.Equal(t, []models.DedupKey{key}, resolver.seen)

	out := readAll(t, p.Target())
	assert.Equal(t, "http://e.com/1", out[0].header.Get(warc.FieldTargetURI))
	assert.Contains(t, string(out[1].block), "Replacing URL in record <urn:uuid:a> with http://e.com/1.")
}

func TestPipelineTargetExists(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "missing.warc")
	target := filepath.Join(dir, "missing.deduplicated.warc")
	require.NoError(t, os.WriteFile(target, []byte("keep"), 0o644))

	_, err := NewPipeline(source, &fakeResolver{}, Options{})
	assert.ErrorIs(t, err, warc.ErrTargetExists)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(got))
}

func TestPipelineUnsupportedExtension(t *testing.T) {
	_, err := NewPipeline(filepath.Join(t.TempDir(), "crawl.txt"), &fakeResolver{}, Options{})
	assert.ErrorIs(t, err, warc.ErrUnsupportedExtension)
}

func TestPipelineUnresolvedKeyIsFatal(t *testing.T) {
	source := writeSource(t, "unresolved.warc", responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X"))
	key := models.NewDedupKey("sha1:X", "http://e.com/1")

	p, err := NewPipeline(source, &fakeResolver{skip: map[models.DedupKey]bool{key: true}}, Options{})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unresolved")
	assert.NoFileExists(t, p.Target())
}

func TestPipelineMalformedSourceRemovesTarget(t *testing.T) {
	good := responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X")
	source := writeSource(t, "broken.warc", good+"NOT A WARC\r\n\r\n")

	p, err := NewPipeline(source, &fakeResolver{}, Options{})
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, warc.ErrMalformed)
	assert.NoFileExists(t, p.Target())
}

func TestPipelineCompressed(t *testing.T) {
	var src bytes.Buffer
	for _, rec := range []string{
		warcinfoRecord("<urn:uuid:info>"),
		responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X"),
	} {
		zw := gzip.NewWriter(&src)
		_, err := zw.Write([]byte(rec))
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	}
	source := writeSource(t, "crawl.warc.gz", src.String())

	key := models.NewDedupKey("sha1:X", "http://e.com/1")
	p, err := NewPipeline(source, &fakeResolver{results: map[models.DedupKey]models.LookupResult{
		key: models.Matched(models.Capture{
			Date: time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC),
			URI:  "http://e.com/1",
		}),
	}}, Options{Log: oplog.New(nil)})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(p.Target(), "crawl.deduplicated.warc.gz"))

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	raw, err := os.ReadFile(p.Target())
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(raw), 2)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2])

	out := readAll(t, p.Target())
	require.Len(t, out, 3)
	assert.Equal(t, warc.TypeRevisit, out[1].header.Get(warc.FieldType))
}

func TestPipelineCancelled(t *testing.T) {
	source := writeSource(t, "cancel.warc", responseRecord("<urn:uuid:a>", "http://e.com/1", "sha1:X"))
	key := models.NewDedupKey("sha1:X", "http://e.com/1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := NewPipeline(source, &fakeResolver{results: map[models.DedupKey]models.LookupResult{
		key: models.LookupFailed(models.ReasonNoResponse),
	}}, Options{})
	require.NoError(t, err)

	_, err = p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, p.Target())
}
