package odometry

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// RecordFields lists the 0-based token positions consumed from a raw
// ground-truth record, in OdometryRecord field order.
var RecordFields = [9]int{8, 9, 10, 14, 15, 16, 20, 21, 22}

// minRecordTokens is one past the highest consumed index.
const minRecordTokens = 23

// OdometryRecord holds the ground-truth motion of one frame. Velocities are
// in m/s, accelerations in m/s^2 and angular rates in rad/s, all expressed
// in the vehicle frame (forward, leftward, upward).
type OdometryRecord struct {
	VelForward  float64 `json:"vf"`
	VelLeft     float64 `json:"vl"`
	VelUp       float64 `json:"vu"`
	AccForward  float64 `json:"af"`
	AccLeft     float64 `json:"al"`
	AccUp       float64 `json:"au"`
	RateForward float64 `json:"wf"`
	RateLeft    float64 `json:"wl"`
	RateUp      float64 `json:"wu"`
}

// ParseRecord extracts the nine consumed fields from a whitespace-delimited
// record. Records shorter than 23 tokens or with a non-numeric consumed
// token are rejected with ErrMalformedRecord.
func ParseRecord(line string) (OdometryRecord, error) {
	tokens := strings.Fields(line)
	if len(tokens) < minRecordTokens {
		return OdometryRecord{}, fmt.Errorf("%w: need at least %d tokens, got %d",
			ErrMalformedRecord, minRecordTokens, len(tokens))
	}
	var vals [9]float64
	for i, idx := range RecordFields {
		v, err := strconv.ParseFloat(tokens[idx], 64)
		if err != nil {
			return OdometryRecord{}, fmt.Errorf("%w: token %d (%q) is not numeric",
				ErrMalformedRecord, idx, tokens[idx])
		}
		vals[i] = v
	}
	return RecordFromArray(vals), nil
}

// ReadRecord parses the whole content of r as a single record.
func ReadRecord(r io.Reader) (OdometryRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return OdometryRecord{}, fmt.Errorf("failed to read record: %w", err)
	}
	return ParseRecord(string(data))
}

// RecordFromArray builds a record from values in field order.
func RecordFromArray(v [9]float64) OdometryRecord {
	return OdometryRecord{
		VelForward: v[0], VelLeft: v[1], VelUp: v[2],
		AccForward: v[3], AccLeft: v[4], AccUp: v[5],
		RateForward: v[6], RateLeft: v[7], RateUp: v[8],
	}
}

// Array returns the nine fields in record order.
func (r OdometryRecord) Array() [9]float64 {
	return [9]float64{
		r.VelForward, r.VelLeft, r.VelUp,
		r.AccForward, r.AccLeft, r.AccUp,
		r.RateForward, r.RateLeft, r.RateUp,
	}
}

// Target is the regression target subset: forward velocity, lateral velocity
// and yaw rate (angular rate around the upward axis).
func (r OdometryRecord) Target() Velocity {
	return Velocity{Forward: r.VelForward, Lateral: r.VelLeft, YawRate: r.RateUp}
}

// Targets maps records to their regression targets.
func Targets(records []OdometryRecord) []Velocity {
	out := make([]Velocity, len(records))
	for i, r := range records {
		out[i] = r.Target()
	}
	return out
}
