package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/visual-odometry/internal/config"
	"github.com/banshee-data/visual-odometry/internal/fsutil"
	"github.com/banshee-data/visual-odometry/internal/odometry"
)

func encodePNG(t *testing.T, w, h int, fill func(x, y int) color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// record builds a 23-token ground-truth line with vf, vl and wu set.
func record(vf, vl, wu float64) string {
	tokens := make([]string, 23)
	for i := range tokens {
		tokens[i] = "0"
	}
	tokens[8] = fmt.Sprint(vf)
	tokens[9] = fmt.Sprint(vl)
	tokens[22] = fmt.Sprint(wu)
	return strings.Join(tokens, " ")
}

func newTestDataset(t *testing.T, frames int) (*fsutil.MemoryFileSystem, *Loader) {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	var stamps strings.Builder
	for i := 0; i < frames; i++ {
		shade := uint8(10 * (i + 1))
		mfs.WriteFile(fmt.Sprintf("data/00/image/%d.png", i), encodePNG(t, 4, 2, func(x, y int) color.RGBA {
			return color.RGBA{R: shade, G: uint8(x), B: uint8(y), A: 255}
		}))
		mfs.WriteFile(fmt.Sprintf("data/00/odom/%d.txt", i), []byte(record(float64(i), 0.5, 0.1)))
		fmt.Fprintf(&stamps, "%e\n", 0.1*float64(i))
	}
	mfs.WriteFile("data/00/times.txt", []byte(stamps.String()))
	mfs.WriteFile("data/01/times.txt", []byte("0\n"))
	require.NoError(t, mfs.MkdirAll("data/01/image", 0o755))
	return mfs, NewLoader(mfs, "data", config.DefaultOdometryConfig())
}

func TestListAndSelectSequences(t *testing.T) {
	t.Parallel()

	mfs, l := newTestDataset(t, 2)
	mfs.WriteFile("data/README", []byte("not a sequence"))

	seqs, err := l.ListSequences()
	require.NoError(t, err)
	assert.Equal(t, []string{"00", "01"}, seqs)

	sel, err := l.Select(nil)
	require.NoError(t, err)
	assert.Equal(t, seqs, sel)

	sel, err = l.Select([]string{"01"})
	require.NoError(t, err)
	assert.Equal(t, []string{"01"}, sel)

	_, err = l.Select([]string{"07"})
	assert.ErrorContains(t, err, `"07"`)
}

func TestFrames_NumericOrder(t *testing.T) {
	t.Parallel()

	mfs := fsutil.NewMemoryFileSystem()
	for _, name := range []string{"10.png", "2.png", "1.png", "thumbs.db", "0.png"} {
		mfs.WriteFile("data/05/image/"+name, []byte{0})
	}
	l := NewLoader(mfs, "data", config.DefaultOdometryConfig())

	frames, err := l.Frames("05")
	require.NoError(t, err)
	var names []string
	for _, f := range frames {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"0", "1", "2", "10"}, names)
	assert.Equal(t, "data/05/image/10.png", frames[3].File)
}

func TestDecodeFrame_BGROrder(t *testing.T) {
	t.Parallel()

	data := encodePNG(t, 2, 1, func(x, y int) color.RGBA {
		return color.RGBA{R: 200, G: 100, B: 50, A: 255}
	})
	tensor, format, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 1, tensor.Rows)
	assert.Equal(t, 2, tensor.Cols)
	assert.Equal(t, FrameChannels, tensor.Channels)
	assert.Equal(t, []float64{50, 100, 200, 50, 100, 200}, tensor.Data)

	_, _, err = DecodeFrame([]byte("not an image"))
	assert.Error(t, err)
}

func TestImageTensor_Empty(t *testing.T) {
	_, err := ImageTensor(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	assert.ErrorIs(t, err, odometry.ErrShapeMismatch)
}

func TestLoadSequence(t *testing.T) {
	t.Parallel()

	_, l := newTestDataset(t, 5)
	seq, err := l.LoadSequence(context.Background(), "00")
	require.NoError(t, err)

	assert.Equal(t, "00", seq.ID)
	require.Len(t, seq.Frames, 5)
	assert.Equal(t, []float64{0, 0.1, 0.2, 0.3, 0.4}, seq.Stamps)

	for i, f := range seq.Frames {
		assert.Equal(t, "2x4x3", f.ShapeString(), "frame %d", i)
		var sum float64
		for _, v := range f.Data {
			sum += v
		}
		assert.InDelta(t, 0, sum, 1e-9, "frame %d should be zero mean", i)
	}
}

func TestLoadSequence_TooFewStamps(t *testing.T) {
	t.Parallel()

	mfs, l := newTestDataset(t, 3)
	mfs.WriteFile("data/00/times.txt", []byte("0\n0.1\n"))

	_, err := l.LoadSequence(context.Background(), "00")
	require.Error(t, err)
	assert.True(t, errors.Is(err, odometry.ErrInvalidConfiguration))
}

func TestLoadSequence_BadImage(t *testing.T) {
	t.Parallel()

	mfs, l := newTestDataset(t, 3)
	mfs.WriteFile("data/00/image/1.png", []byte("garbage"))

	_, err := l.LoadSequence(context.Background(), "00")
	assert.ErrorContains(t, err, "1.png")
}

func TestLoadGroundTruth(t *testing.T) {
	t.Parallel()

	mfs, l := newTestDataset(t, 3)
	gt, err := l.LoadGroundTruth("00")
	require.NoError(t, err)
	require.Len(t, gt.Records, 3)
	assert.Equal(t, []odometry.Velocity{
		{Forward: 0, Lateral: 0.5, YawRate: 0.1},
		{Forward: 1, Lateral: 0.5, YawRate: 0.1},
		{Forward: 2, Lateral: 0.5, YawRate: 0.1},
	}, gt.Targets())

	mfs.WriteFile("data/00/odom/2.txt", []byte("1 2 3 4 5 6 7 8 9 10"))
	_, err = l.LoadGroundTruth("00")
	assert.True(t, errors.Is(err, odometry.ErrMalformedRecord))
}

func TestParseStamps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    []float64
		wantErr error
	}{
		{"scientific", "0.000000e+00\n1.036400e-01\n", []float64{0, 0.10364}, nil},
		{"blank lines", "\n1\n\n2\n", []float64{1, 2}, nil},
		{"repeated stamp", "1\n1\n", []float64{1, 1}, nil},
		{"garbage", "1\nx\n", nil, odometry.ErrMalformedRecord},
		{"decreasing", "2\n1\n", nil, odometry.ErrInvalidConfiguration},
		{"nan", "0\nNaN\n0.5\n", nil, odometry.ErrMalformedRecord},
		{"inf", "0\n+Inf\n", nil, odometry.ErrMalformedRecord},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStamps(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
