// Package dataset reads sequences laid out as
//
//	<root>/<sequence>/<image_dir>/<n>.<ext>
//	<root>/<sequence>/<odom_dir>/<n>.txt
//	<root>/<sequence>/<times_file>
//
// where frame names are integers and sort numerically.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/visual-odometry/internal/config"
	"github.com/banshee-data/visual-odometry/internal/fsutil"
	"github.com/banshee-data/visual-odometry/internal/monitoring"
	"github.com/banshee-data/visual-odometry/internal/odometry"
)

// Loader reads frames, stamps and ground-truth records for sequences under
// Root.
type Loader struct {
	FS        fsutil.FileSystem
	Root      string
	ImageDir  string
	OdomDir   string
	TimesFile string
	// Workers bounds concurrent image decoding. Values below 1 mean 1.
	Workers int
}

// NewLoader returns a loader using the layout names from cfg.
func NewLoader(fsys fsutil.FileSystem, root string, cfg *config.OdometryConfig) *Loader {
	return &Loader{
		FS:        fsys,
		Root:      root,
		ImageDir:  cfg.GetImageDir(),
		OdomDir:   cfg.GetOdomDir(),
		TimesFile: cfg.GetTimesFile(),
		Workers:   cfg.GetWorkers(),
	}
}

// Frame names one image file of a sequence.
type Frame struct {
	Name string
	File string
}

func (l *Loader) sequenceDir(seq string) string {
	return path.Join(l.Root, seq)
}

// ListSequences returns the sequence directories under Root in name order.
func (l *Loader) ListSequences() ([]string, error) {
	entries, err := l.FS.ReadDir(l.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to list dataset root %s: %w", l.Root, err)
	}
	var seqs []string
	for _, e := range entries {
		if e.IsDir() {
			seqs = append(seqs, e.Name())
		}
	}
	return seqs, nil
}

// Select returns wanted in order, or every sequence under Root when wanted
// is empty. A wanted sequence missing from the dataset is an error.
func (l *Loader) Select(wanted []string) ([]string, error) {
	all, err := l.ListSequences()
	if err != nil {
		return nil, err
	}
	if len(wanted) == 0 {
		return all, nil
	}
	present := make(map[string]bool, len(all))
	for _, s := range all {
		present[s] = true
	}
	for _, s := range wanted {
		if !present[s] {
			return nil, fmt.Errorf("sequence %q not found under %s", s, l.Root)
		}
	}
	return wanted, nil
}

// Frames lists the image files of seq sorted by their integer name. Files
// whose stem is not an integer are skipped.
func (l *Loader) Frames(seq string) ([]Frame, error) {
	dir := path.Join(l.sequenceDir(seq), l.ImageDir)
	entries, err := l.FS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list frames in %s: %w", dir, err)
	}

	type numbered struct {
		n int
		Frame
	}
	var found []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem, _, _ := strings.Cut(e.Name(), ".")
		n, err := strconv.Atoi(stem)
		if err != nil {
			monitoring.Debugf("[dataset] skipping %s: not a numbered frame", path.Join(dir, e.Name()))
			continue
		}
		found = append(found, numbered{n: n, Frame: Frame{Name: stem, File: path.Join(dir, e.Name())}})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].n < found[j].n })

	frames := make([]Frame, len(found))
	for i, f := range found {
		frames[i] = f.Frame
	}
	return frames, nil
}

// LoadFrame decodes and normalises one image file.
func (l *Loader) LoadFrame(file string) (odometry.Tensor, error) {
	data, err := l.FS.ReadFile(file)
	if err != nil {
		return odometry.Tensor{}, fmt.Errorf("failed to read frame: %w", err)
	}
	t, _, err := DecodeFrame(data)
	if err != nil {
		return odometry.Tensor{}, fmt.Errorf("%s: %w", file, err)
	}
	t.Normalize()
	return t, nil
}

// LoadFrames decodes frames in parallel, keeping their order.
func (l *Loader) LoadFrames(ctx context.Context, frames []Frame) ([]odometry.Tensor, error) {
	out := make([]odometry.Tensor, len(frames))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(l.Workers, 1))
	for i, f := range frames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := l.LoadFrame(f.File)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadStamps reads one timestamp in seconds per non-empty line of the
// sequence's times file. Stamps must not decrease.
func (l *Loader) LoadStamps(seq string) ([]float64, error) {
	file := path.Join(l.sequenceDir(seq), l.TimesFile)
	data, err := l.FS.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read stamps: %w", err)
	}
	return ParseStamps(bytes.NewReader(data))
}

// LoadRecords parses the ground-truth record of every frame.
func (l *Loader) LoadRecords(seq string, frames []Frame) ([]odometry.OdometryRecord, error) {
	dir := path.Join(l.sequenceDir(seq), l.OdomDir)
	records := make([]odometry.OdometryRecord, len(frames))
	for i, f := range frames {
		file := path.Join(dir, f.Name+".txt")
		data, err := l.FS.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read record for frame %s: %w", f.Name, err)
		}
		rec, err := odometry.ReadRecord(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		records[i] = rec
	}
	return records, nil
}

// LoadSequence loads every frame of seq with its stamp. Extra trailing
// stamps are dropped; fewer stamps than frames is an error.
func (l *Loader) LoadSequence(ctx context.Context, seq string) (odometry.Sequence, error) {
	frames, err := l.Frames(seq)
	if err != nil {
		return odometry.Sequence{}, err
	}
	stamps, err := l.checkedStamps(seq, len(frames))
	if err != nil {
		return odometry.Sequence{}, err
	}
	tensors, err := l.LoadFrames(ctx, frames)
	if err != nil {
		return odometry.Sequence{}, fmt.Errorf("sequence %s: %w", seq, err)
	}
	monitoring.Debugf("[dataset] sequence %s: %d frames", seq, len(frames))
	return odometry.Sequence{ID: seq, Frames: tensors, Stamps: stamps}, nil
}

// GroundTruth holds a sequence's records and stamps without its images.
type GroundTruth struct {
	Sequence string
	Frames   []Frame
	Records  []odometry.OdometryRecord
	Stamps   []float64
}

// Targets returns the regression target of every frame.
func (g GroundTruth) Targets() []odometry.Velocity {
	return odometry.Targets(g.Records)
}

// LoadGroundTruth loads records and stamps for seq.
func (l *Loader) LoadGroundTruth(seq string) (GroundTruth, error) {
	frames, err := l.Frames(seq)
	if err != nil {
		return GroundTruth{}, err
	}
	stamps, err := l.checkedStamps(seq, len(frames))
	if err != nil {
		return GroundTruth{}, err
	}
	records, err := l.LoadRecords(seq, frames)
	if err != nil {
		return GroundTruth{}, fmt.Errorf("sequence %s: %w", seq, err)
	}
	return GroundTruth{Sequence: seq, Frames: frames, Records: records, Stamps: stamps}, nil
}

func (l *Loader) checkedStamps(seq string, frames int) ([]float64, error) {
	stamps, err := l.LoadStamps(seq)
	if err != nil {
		return nil, fmt.Errorf("sequence %s: %w", seq, err)
	}
	if len(stamps) < frames {
		return nil, fmt.Errorf("sequence %s: %w: %d frames but %d stamps",
			seq, odometry.ErrInvalidConfiguration, frames, len(stamps))
	}
	return stamps[:frames], nil
}

// ParseStamps reads one finite float per non-empty line. Stamps must not
// decrease.
func ParseStamps(r io.Reader) ([]float64, error) {
	var stamps []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: invalid stamp %q", odometry.ErrMalformedRecord, line, text)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: line %d: stamp %q is not finite", odometry.ErrMalformedRecord, line, text)
		}
		if n := len(stamps); n > 0 && v < stamps[n-1] {
			return nil, fmt.Errorf("%w: line %d: stamp %v precedes %v", odometry.ErrInvalidConfiguration, line, v, stamps[n-1])
		}
		stamps = append(stamps, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stamps: %w", err)
	}
	return stamps, nil
}
