package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/backmassage/bitshrink/internal/config"
	"github.com/backmassage/bitshrink/internal/ffmpeg"
	"github.com/backmassage/bitshrink/internal/logging"
	"github.com/backmassage/bitshrink/internal/planner"
)

const sourceData = "source-audio-data"

// --- Fakes ---

// fakeProber reports bit rates by base name; unknown names fail.
type fakeProber map[string]int64

func (f fakeProber) AudioBitRate(_ context.Context, path string) (int64, error) {
	br, ok := f[filepath.Base(path)]
	if !ok {
		return 0, errors.New("no audio stream")
	}
	return br, nil
}

// fakeEncoder writes a short output file. Inputs whose base name contains
// "bad" fail after writing partial output.
type fakeEncoder struct {
	calls atomic.Int32
	// before, when set, runs at the start of every Encode.
	before func()
}

func (f *fakeEncoder) Encode(_ context.Context, job ffmpeg.Job) error {
	f.calls.Add(1)
	if f.before != nil {
		f.before()
	}
	if err := os.WriteFile(job.Output, []byte("enc"), 0o644); err != nil {
		return err
	}
	if strings.Contains(filepath.Base(job.Input), "bad") {
		return &ffmpeg.EncodeError{Input: job.Input, ExitCode: 1, Stderr: "Invalid data found when processing input"}
	}
	return nil
}

// waitingProber answers only once until exists, so the scan resumes after
// the first conversion has landed on disk.
type waitingProber struct {
	fakeProber
	until string
}

func (w waitingProber) AudioBitRate(ctx context.Context, path string) (int64, error) {
	deadline := time.Now().Add(5 * time.Second)
	for !exists(w.until) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	return w.fakeProber.AudioBitRate(ctx, path)
}

// noisyEncoder fails every job with the given ffmpeg diagnostic.
type noisyEncoder struct{ stderr string }

func (e noisyEncoder) Encode(_ context.Context, job ffmpeg.Job) error {
	return &ffmpeg.EncodeError{Input: job.Input, ExitCode: 1, Stderr: e.stderr}
}

// --- Helpers ---

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(sourceData), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func relPaths(t *testing.T, root string, seq func(func(Candidate) bool)) []string {
	t.Helper()
	var out []string
	for c := range seq {
		rel, err := filepath.Rel(root, c.Path)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func tempFiles(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && strings.Contains(d.Name(), ".bitshrink-") {
			found = append(found, path)
		}
		return nil
	})
	return found
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func newRunner(cfg config.Config, p planner.Prober, enc Encoder) *Runner {
	return &Runner{
		Cfg:     &cfg,
		Log:     logging.New(io.Discard, io.Discard),
		Prober:  p,
		Encoder: enc,
	}
}

func baseConfig(paths ...string) config.Config {
	cfg := config.DefaultConfig()
	cfg.Paths = paths
	cfg.Recursive = true
	cfg.Workers = 4
	return cfg
}

// --- Scan tests ---

func TestScan_FilesBeforeSubdirs(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.mp3")
	touch(t, dir, "a.wav")
	touch(t, dir, "z.txt")
	touch(t, dir, "sub/c.flac")
	touch(t, dir, "sub/deeper/d.ogg")
	touch(t, dir, "sub/e.mp3")
	touch(t, dir, "sub2/f.aac")

	got := relPaths(t, dir, Scan([]string{dir}, true))
	want := []string{"a.wav", "b.mp3", "z.txt", "sub/c.flac", "sub/e.mp3", "sub/deeper/d.ogg", "sub2/f.aac"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	got = relPaths(t, dir, Scan([]string{dir}, false))
	want = []string{"a.wav", "b.mp3", "z.txt"}
	if !slices.Equal(got, want) {
		t.Errorf("non-recursive: got %v, want %v", got, want)
	}
}

func TestScan_FileRootsYieldedAsIs(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.mp3")

	var got []Candidate
	for c := range Scan([]string{missing}, false) {
		got = append(got, c)
	}
	if len(got) != 1 || got[0].Path != missing || got[0].Err != nil {
		t.Errorf("got %+v, want one candidate for %s", got, missing)
	}
}

func TestScan_Deduplicates(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.wav")
	touch(t, dir, "sub/b.wav")

	got := relPaths(t, dir, Scan([]string{dir, a, filepath.Join(dir, "sub"), dir}, true))
	want := []string{"a.wav", "sub/b.wav"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScan_OverlappingRootsReadEachDirOnce(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav")
	touch(t, dir, "sub/b.wav")
	touch(t, dir, "sub/deeper/c.wav")

	got := relPaths(t, dir, Scan([]string{filepath.Join(dir, "sub"), dir}, true))
	want := []string{"sub/b.wav", "sub/deeper/c.wav", "a.wav"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScan_SkipsConversionTempFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.wav")
	touch(t, dir, ".a.wav.bitshrink-123456.mp3")

	got := relPaths(t, dir, Scan([]string{dir}, false))
	if want := []string{"a.wav"}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScan_SymlinkedDirNotFollowed(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "real/a.mp3")
	if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "loop")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if err := os.Symlink(filepath.Join(dir, "real", "a.mp3"), filepath.Join(dir, "link.mp3")); err != nil {
		t.Fatal(err)
	}

	got := relPaths(t, dir, Scan([]string{dir}, true))
	want := []string{"link.mp3", "real/a.mp3"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScan_UnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any directory")
	}
	dir := t.TempDir()
	touch(t, dir, "a.mp3")
	touch(t, dir, "locked/hidden.mp3")
	touch(t, dir, "open/b.mp3")
	locked := filepath.Join(dir, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var paths []string
	var scanErrs int
	for c := range Scan([]string{dir}, true) {
		if c.Err != nil {
			var se *ScanError
			if !errors.As(c.Err, &se) || se.Dir != locked {
				t.Errorf("unexpected error candidate: %v", c.Err)
			}
			scanErrs++
			continue
		}
		paths = append(paths, filepath.Base(c.Path))
	}
	if scanErrs != 1 {
		t.Errorf("scan errors: got %d, want 1", scanErrs)
	}
	if !slices.Equal(paths, []string{"a.mp3", "b.mp3"}) {
		t.Errorf("paths: got %v", paths)
	}
}

func TestScan_StopsEarly(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.mp3", "b.mp3", "c.mp3"} {
		touch(t, dir, n)
	}
	n := 0
	for range Scan([]string{dir}, true) {
		n++
		break
	}
	if n != 1 {
		t.Errorf("got %d iterations, want 1", n)
	}
}

// --- Converter tests ---

func TestConvert_FormatChangeKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "a.wav")
	conv := &Converter{Encoder: &fakeEncoder{}}

	o := conv.Convert(context.Background(), Task{Path: src, OutputExt: "mp3", CeilingKbps: 128, Reason: planner.FormatMismatch})
	if !o.Converted {
		t.Fatalf("not converted: %v", o.Err)
	}
	if o.Target != filepath.Join(dir, "a.mp3") {
		t.Errorf("target: got %s", o.Target)
	}
	if !exists(src) || !exists(o.Target) {
		t.Error("both source and target should exist without delete-after")
	}
	if o.InBytes != int64(len(sourceData)) || o.OutBytes != 3 {
		t.Errorf("bytes: in=%d out=%d", o.InBytes, o.OutBytes)
	}
	if tmp := tempFiles(t, dir); len(tmp) != 0 {
		t.Errorf("temp files left: %v", tmp)
	}
}

func TestConvert_DeleteAfter(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "a.flac")
	conv := &Converter{Encoder: &fakeEncoder{}}

	o := conv.Convert(context.Background(), Task{Path: src, OutputExt: "ogg", DeleteAfter: true})
	if !o.Converted || o.DeleteErr != nil {
		t.Fatalf("outcome: %+v", o)
	}
	if exists(src) {
		t.Error("source should be removed")
	}
	if !exists(filepath.Join(dir, "a.ogg")) {
		t.Error("target missing")
	}
}

func TestConvert_SameFormatReplacesInPlace(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "loud.mp3")
	conv := &Converter{Encoder: &fakeEncoder{}}

	o := conv.Convert(context.Background(), Task{Path: src, OutputExt: "mp3", DeleteAfter: true, Reason: planner.BitrateExceeded})
	if !o.Converted || o.Target != src {
		t.Fatalf("outcome: %+v", o)
	}
	data, err := os.ReadFile(src)
	if err != nil || string(data) != "enc" {
		t.Errorf("source should hold re-encoded data, got %q (%v)", data, err)
	}
}

func TestConvert_EncoderFailureLeavesOriginal(t *testing.T) {
	dir := t.TempDir()
	src := touch(t, dir, "bad.wav")
	conv := &Converter{Encoder: &fakeEncoder{}}

	o := conv.Convert(context.Background(), Task{Path: src, OutputExt: "mp3", DeleteAfter: true})
	if o.Converted || o.Kind != FailureEncode {
		t.Fatalf("outcome: %+v", o)
	}
	if o.ExitCode != 1 || !strings.Contains(o.Output, "Invalid data") {
		t.Errorf("diagnostics: exit=%d output=%q", o.ExitCode, o.Output)
	}
	data, err := os.ReadFile(src)
	if err != nil || string(data) != sourceData {
		t.Errorf("original changed: %q (%v)", data, err)
	}
	if exists(filepath.Join(dir, "bad.mp3")) {
		t.Error("target should not exist")
	}
	if tmp := tempFiles(t, dir); len(tmp) != 0 {
		t.Errorf("temp files left: %v", tmp)
	}
}

func TestConvert_RenameFailure(t *testing.T) {
	orig := renameFunc
	renameFunc = func(string, string) error { return errors.New("EXDEV") }
	t.Cleanup(func() { renameFunc = orig })

	dir := t.TempDir()
	src := touch(t, dir, "a.wav")
	o := (&Converter{Encoder: &fakeEncoder{}}).Convert(context.Background(), Task{Path: src, OutputExt: "mp3"})
	if o.Converted || o.Kind != FailureEncode {
		t.Fatalf("outcome: %+v", o)
	}
	if tmp := tempFiles(t, dir); len(tmp) != 0 {
		t.Errorf("temp files left: %v", tmp)
	}
}

func TestConvert_MissingSource(t *testing.T) {
	enc := &fakeEncoder{}
	o := (&Converter{Encoder: enc}).Convert(context.Background(), Task{Path: filepath.Join(t.TempDir(), "gone.wav"), OutputExt: "mp3"})
	if o.Converted || o.Kind != FailureEncode {
		t.Fatalf("outcome: %+v", o)
	}
	if enc.calls.Load() != 0 {
		t.Error("encoder should not run for a missing source")
	}
}

// --- Pool tests ---

func TestPoolSize(t *testing.T) {
	orig := numCPU
	t.Cleanup(func() { numCPU = orig })

	numCPU = func() int { return 8 }
	if n, ok := PoolSize(3); n != 3 || !ok {
		t.Errorf("requested: got %d,%v", n, ok)
	}
	if n, ok := PoolSize(0); n != 8 || !ok {
		t.Errorf("auto: got %d,%v", n, ok)
	}
	numCPU = func() int { return 0 }
	if n, ok := PoolSize(0); n != 1 || ok {
		t.Errorf("fallback: got %d,%v", n, ok)
	}
}

func TestPool_EachTaskOnce(t *testing.T) {
	tasks := make(chan Task, 4)
	var mu sync.Mutex
	seen := make(map[string]int)
	workers := make(map[int]bool)

	p := &Pool{Size: 4, Work: func(_ context.Context, w int, task Task) {
		mu.Lock()
		defer mu.Unlock()
		seen[task.Path]++
		workers[w] = true
	}}

	go func() {
		for i := range 100 {
			tasks <- Task{Path: string(rune('A'+i%26)) + strings.Repeat("x", i/26)}
		}
		close(tasks)
	}()
	p.Run(context.Background(), tasks)

	if len(seen) != 100 {
		t.Errorf("distinct tasks: got %d, want 100", len(seen))
	}
	for path, n := range seen {
		if n != 1 {
			t.Errorf("%s ran %d times", path, n)
		}
	}
	for w := range workers {
		if w < 1 || w > 4 {
			t.Errorf("worker id %d out of range", w)
		}
	}
}

func TestPool_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := make(chan Task, 2)
	tasks <- Task{Path: "a"}
	tasks <- Task{Path: "b"}
	close(tasks)

	var ran atomic.Int32
	(&Pool{Size: 2, Work: func(context.Context, int, Task) { ran.Add(1) }}).Run(ctx, tasks)
	if ran.Load() != 0 {
		t.Errorf("ran %d tasks after cancellation", ran.Load())
	}
}

// --- Stats tests ---

func TestStats_SelectedWithoutOutcomeIsNotProcessed(t *testing.T) {
	st := NewStats(false)
	st.RecordClassification(planner.Result{Kind: planner.NeedsConversion, Reason: planner.FormatMismatch})
	st.RecordClassification(planner.Result{Kind: planner.NeedsConversion, Reason: planner.BitrateExceeded})
	st.RecordClassification(planner.Result{Kind: planner.NeedsConversion, Reason: planner.FormatMismatch})
	st.RecordClassification(planner.Result{Kind: planner.ProbeFailed})
	st.RecordOutcome(Outcome{Converted: true, Task: Task{Reason: planner.BitrateExceeded}})
	st.RecordOutcome(Outcome{Kind: FailureEncode, Task: Task{Reason: planner.FormatMismatch}})

	s := st.Snapshot()
	if s.ByFormat() != 0 || s.ByBitrate() != 1 || s.NotProcessed() != 1 {
		t.Errorf("summary: %+v", s)
	}
	if s.AudioFiles() != 3 || s.Errors() != 2 {
		t.Errorf("audio=%d errors=%d", s.AudioFiles(), s.Errors())
	}
	if s.Accounted() != s.Scanned {
		t.Errorf("accounted %d != scanned %d", s.Accounted(), s.Scanned)
	}
}

func TestStats_ConcurrentRecord(t *testing.T) {
	st := NewStats(false)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st.RecordClassification(planner.Result{Kind: planner.NeedsConversion, Reason: planner.FormatMismatch})
			st.RecordOutcome(Outcome{Converted: true, Task: Task{Reason: planner.FormatMismatch}, InBytes: 10, OutBytes: 4})
		}()
	}
	wg.Wait()

	s := st.Snapshot()
	if s.ConvertedFormat != 50 || s.SpaceSaved() != 300 {
		t.Errorf("converted=%d saved=%d", s.ConvertedFormat, s.SpaceSaved())
	}
}

func TestReport_ListsEveryCategory(t *testing.T) {
	out := Report(Summary{Scanned: 3, NonAudio: 1, SelectedFormat: 1, ConvertedFormat: 1, ProbeErrors: 1,
		TotalInputBytes: 2048, TotalOutputBytes: 1024})
	for _, want := range []string{"Entries scanned:", "Audio files:", "by format:", "by bit rate:",
		"probe:", "encode:", "scan:", "Non-audio skipped:", "Space saved:"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Not processed:") {
		t.Error("Not processed should only appear when non-zero")
	}
}

// --- Runner tests ---

func TestRun_Scenario(t *testing.T) {
	tests := []struct {
		name        string
		bRate       int64
		wantBitrate int
		wantSame    int
	}{
		{"b above ceiling", 192000, 1, 0},
		{"b at ceiling", 128000, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			touch(t, dir, "a.wav")
			touch(t, dir, "b.mp3")
			touch(t, dir, "c.txt")

			r := newRunner(baseConfig(dir), fakeProber{"b.mp3": tt.bRate}, &fakeEncoder{})
			s := r.Run(context.Background()).Snapshot()

			if s.ConvertedFormat != 1 || s.NonAudio != 1 {
				t.Errorf("format=%d nonaudio=%d", s.ConvertedFormat, s.NonAudio)
			}
			if s.ConvertedBitrate != tt.wantBitrate || s.Unchanged != tt.wantSame {
				t.Errorf("bitrate=%d unchanged=%d", s.ConvertedBitrate, s.Unchanged)
			}
			if !exists(filepath.Join(dir, "a.mp3")) {
				t.Error("a.mp3 not written")
			}
			if s.Accounted() != s.Scanned || s.Scanned != 3 {
				t.Errorf("accounted=%d scanned=%d", s.Accounted(), s.Scanned)
			}
		})
	}
}

func TestRun_BucketsSumToScanned(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.wav", "bad.flac", "c.mp3", "d.mp3", "noprobe.mp3", "e.jpg", "sub/f.ogg", "sub/g.txt"} {
		touch(t, dir, n)
	}
	p := fakeProber{"c.mp3": 320000, "d.mp3": 96000}

	s := newRunner(baseConfig(dir), p, &fakeEncoder{}).Run(context.Background()).Snapshot()

	if s.Scanned != 8 || s.Accounted() != 8 {
		t.Errorf("scanned=%d accounted=%d", s.Scanned, s.Accounted())
	}
	if s.EncodeErrors != 1 || s.ProbeErrors != 1 {
		t.Errorf("encode=%d probe=%d", s.EncodeErrors, s.ProbeErrors)
	}
	if s.ConvertedFormat != 2 || s.ConvertedBitrate != 1 || s.Unchanged != 1 || s.NonAudio != 2 {
		t.Errorf("summary: %+v", s)
	}
	if s.AudioFiles() != 5 {
		t.Errorf("audio files: got %d, want 5", s.AudioFiles())
	}
	if tmp := tempFiles(t, dir); len(tmp) != 0 {
		t.Errorf("temp files left: %v", tmp)
	}
}

func TestRun_DryRunIdempotent(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.wav", "b.mp3", "c.txt", "sub/d.flac"} {
		touch(t, dir, n)
	}
	cfg := baseConfig(dir)
	cfg.DryRun = true
	p := fakeProber{"b.mp3": 256000}

	first := newRunner(cfg, p, nil).Run(context.Background()).Snapshot()
	second := newRunner(cfg, p, nil).Run(context.Background()).Snapshot()

	if first != second {
		t.Errorf("dry runs differ:\n%+v\n%+v", first, second)
	}
	if first.Converted() != 3 || first.NotProcessed() != 0 {
		t.Errorf("summary: %+v", first)
	}
	if exists(filepath.Join(dir, "a.mp3")) {
		t.Error("dry run wrote output")
	}
}

func TestRun_WorkerCountDoesNotChangeCounts(t *testing.T) {
	dir := t.TempDir()
	p := fakeProber{}
	for i := range 40 {
		name := string(rune('a'+i%20)) + strings.Repeat("_", i/20)
		switch i % 4 {
		case 0:
			touch(t, dir, name+".wav")
		case 1:
			touch(t, dir, name+".mp3")
			p[name+".mp3"] = 320000
		case 2:
			touch(t, dir, name+".mp3")
			p[name+".mp3"] = 64000
		case 3:
			touch(t, dir, "bad"+name+".flac")
		}
	}

	run := func(workers int) Summary {
		// Fresh copy of the tree so both runs see identical input.
		root := t.TempDir()
		if err := os.CopyFS(root, os.DirFS(dir)); err != nil {
			t.Fatal(err)
		}
		cfg := baseConfig(root)
		cfg.Workers = workers
		return newRunner(cfg, p, &fakeEncoder{}).Run(context.Background()).Snapshot()
	}

	one, many := run(1), run(8)
	if one != many {
		t.Errorf("1 worker: %+v\n8 workers: %+v", one, many)
	}
	if one.Scanned != 40 || one.EncodeErrors != 10 {
		t.Errorf("summary: %+v", one)
	}
}

func TestRun_CancellationFinishesInFlight(t *testing.T) {
	dir := t.TempDir()
	for i := range 12 {
		touch(t, dir, string(rune('a'+i))+".wav")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	release := make(chan struct{})
	var once sync.Once
	enc := &fakeEncoder{}
	enc.before = func() {
		once.Do(func() {
			cancel()
			close(release)
		})
		<-release
	}

	cfg := baseConfig(dir)
	cfg.Workers = 2
	s := newRunner(cfg, fakeProber{}, enc).Run(ctx).Snapshot()

	if !s.Interrupted {
		t.Error("run should be marked interrupted")
	}
	if got := int(enc.calls.Load()); s.ConvertedFormat != got {
		t.Errorf("converted %d, but %d encodes started", s.ConvertedFormat, got)
	}
	if s.ConvertedFormat == 0 || s.ConvertedFormat > cfg.Workers {
		t.Errorf("converted %d, want 1..%d (only in-flight tasks finish)", s.ConvertedFormat, cfg.Workers)
	}
	if s.Accounted() != s.Scanned {
		t.Errorf("accounted=%d scanned=%d", s.Accounted(), s.Scanned)
	}
	if tmp := tempFiles(t, dir); len(tmp) != 0 {
		t.Errorf("temp files left: %v", tmp)
	}
}

func TestRun_UnreadableDirectoryCounted(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read any directory")
	}
	dir := t.TempDir()
	touch(t, dir, "a.wav")
	touch(t, dir, "locked/b.wav")
	locked := filepath.Join(dir, "locked")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	s := newRunner(baseConfig(dir), fakeProber{}, &fakeEncoder{}).Run(context.Background()).Snapshot()
	if s.ScanErrors != 1 || s.ConvertedFormat != 1 || s.Accounted() != s.Scanned {
		t.Errorf("summary: %+v", s)
	}
}

func TestRun_OverlappingRootsSkipOwnOutputs(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	touch(t, sub, "a.wav")
	touch(t, dir, "z.mp3")

	p := waitingProber{fakeProber: fakeProber{"z.mp3": 320000}, until: filepath.Join(sub, "a.mp3")}
	enc := &fakeEncoder{}
	s := newRunner(baseConfig(sub, dir), p, enc).Run(context.Background()).Snapshot()

	if s.Scanned != 2 || s.ProbeErrors != 0 {
		t.Errorf("scanned=%d probe errors=%d, want 2 and 0", s.Scanned, s.ProbeErrors)
	}
	if s.ConvertedFormat != 1 || s.ConvertedBitrate != 1 || enc.calls.Load() != 2 {
		t.Errorf("summary: %+v (encodes %d)", s, enc.calls.Load())
	}
}

func TestRun_SameStemClaimsTargetOnce(t *testing.T) {
	for _, dryRun := range []bool{false, true} {
		t.Run(fmt.Sprintf("dry-run=%v", dryRun), func(t *testing.T) {
			dir := t.TempDir()
			flac := touch(t, dir, "song.flac")
			wav := touch(t, dir, "song.wav")

			cfg := baseConfig(dir)
			cfg.DeleteAfter = true
			cfg.DryRun = dryRun
			enc := &fakeEncoder{}
			s := newRunner(cfg, fakeProber{}, enc).Run(context.Background()).Snapshot()

			if s.Converted() != 1 || s.EncodeErrors != 1 || s.Accounted() != s.Scanned {
				t.Errorf("summary: %+v", s)
			}
			if !exists(wav) {
				t.Error("source of the rejected file was removed")
			}
			if dryRun {
				if enc.calls.Load() != 0 || !exists(flac) {
					t.Error("dry run touched files")
				}
				return
			}
			if enc.calls.Load() != 1 {
				t.Errorf("encodes = %d, want 1", enc.calls.Load())
			}
			if exists(flac) || !exists(filepath.Join(dir, "song.mp3")) {
				t.Error("first claimant should be converted and its source deleted")
			}
		})
	}
}

func TestRun_FailureDetailOnlyWhenVerbose(t *testing.T) {
	var lines []string
	for i := range 24 {
		lines = append(lines, fmt.Sprintf("frame %02d", i))
	}
	lines = append(lines, "Invalid data found when processing input")
	enc := noisyEncoder{stderr: strings.Join(lines, "\n")}

	run := func(verbose bool) string {
		dir := t.TempDir()
		touch(t, dir, "a.wav")
		cfg := baseConfig(dir)
		cfg.Verbose = verbose
		var out, errOut bytes.Buffer
		r := newRunner(cfg, fakeProber{}, enc)
		r.Log = logging.New(&out, &errOut)
		if s := r.Run(context.Background()).Snapshot(); s.EncodeErrors != 1 {
			t.Fatalf("summary: %+v", s)
		}
		return errOut.String()
	}

	quiet := run(false)
	if n := strings.Count(quiet, "\n"); n != 1 || !strings.Contains(quiet, "Conversion failed:") {
		t.Errorf("non-verbose should log one line, got %d:\n%s", n, quiet)
	}
	if strings.Contains(quiet, "frame") || strings.Contains(quiet, "not decodable") {
		t.Errorf("non-verbose leaked detail:\n%s", quiet)
	}

	loud := run(true)
	for _, want := range []string{"input is not decodable audio", "frame 05", "frame 23", "Invalid data found"} {
		if !strings.Contains(loud, want) {
			t.Errorf("verbose output missing %q:\n%s", want, loud)
		}
	}
	if strings.Contains(loud, "frame 04") {
		t.Errorf("verbose output should keep only the last 20 lines:\n%s", loud)
	}
}
