package odometry

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// WritePoses writes one line per pose: the 3x4 embedding flattened row-major,
// values separated by single spaces. Values use the shortest representation
// that parses back to the same float64.
func WritePoses(w io.Writer, poses []Pose) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 256)
	for i, p := range poses {
		buf = buf[:0]
		for j, v := range p.Matrix().RawMatrix().Data {
			if j > 0 {
				buf = append(buf, ' ')
			}
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("failed to write pose %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush poses: %w", err)
	}
	return nil
}

// ReadPoses parses the output of WritePoses. Blank lines are ignored.
func ReadPoses(r io.Reader) ([]Pose, error) {
	var poses []Pose
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != PoseRows*PoseCols {
			return nil, fmt.Errorf("%w: line %d: expected %d values, got %d",
				ErrMalformedRecord, line, PoseRows*PoseCols, len(fields))
		}
		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q is not numeric", ErrMalformedRecord, line, f)
			}
			vals[i] = v
		}
		p, err := PoseFromMatrix(mat.NewDense(PoseRows, PoseCols, vals))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		poses = append(poses, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read poses: %w", err)
	}
	return poses, nil
}
