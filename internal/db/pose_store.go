package db

import (
	"database/sql"
	"fmt"

	"github.com/banshee-data/visual-odometry/internal/odometry"
)

// PoseRow is one stored pose. Step 0 is the origin and carries no
// velocity; step k>0 results from the smoothed velocity of step k-1.
type PoseRow struct {
	Step     int                `json:"step"`
	Stamp    float64            `json:"stamp_s"`
	Pose     odometry.Pose      `json:"pose"`
	Velocity *odometry.Velocity `json:"velocity,omitempty"`
}

// PoseStore persists trajectories pose by pose.
type PoseStore struct {
	db *sql.DB
}

// NewPoseStore creates a PoseStore.
func NewPoseStore(db *sql.DB) *PoseStore {
	return &PoseStore{db: db}
}

// InsertTrajectory writes every pose of traj under runID in one
// transaction.
func (s *PoseStore) InsertTrajectory(runID string, traj *odometry.Trajectory) error {
	return retryOnBusy(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`INSERT INTO odometry_poses
			(run_id, step, stamp_s, yaw, x, y, vel_forward, vel_lateral, yaw_rate)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare pose insert: %w", err)
		}
		defer stmt.Close()

		for i, p := range traj.Poses {
			var vf, vl, wu interface{}
			if i > 0 {
				v := traj.Velocities[i-1]
				vf, vl, wu = nullable(v.Forward), nullable(v.Lateral), nullable(v.YawRate)
			}
			if _, err := stmt.Exec(runID, i, traj.Stamps[i], nullable(p.Yaw), nullable(p.X), nullable(p.Y), vf, vl, wu); err != nil {
				return fmt.Errorf("insert pose %d: %w", i, err)
			}
		}
		return tx.Commit()
	})
}

// ListByRun returns the poses of a run in step order.
func (s *PoseStore) ListByRun(runID string) ([]PoseRow, error) {
	rows, err := s.db.Query(`SELECT step, stamp_s, yaw, x, y, vel_forward, vel_lateral, yaw_rate
		FROM odometry_poses WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("query poses: %w", err)
	}
	defer rows.Close()

	var out []PoseRow
	for rows.Next() {
		var r PoseRow
		var yaw, x, y, vf, vl, wu sql.NullFloat64
		if err := rows.Scan(&r.Step, &r.Stamp, &yaw, &x, &y, &vf, &vl, &wu); err != nil {
			return nil, fmt.Errorf("scan pose row: %w", err)
		}
		r.Pose = odometry.NewPose(orNaN(yaw), orNaN(x), orNaN(y))
		if r.Step > 0 {
			r.Velocity = &odometry.Velocity{Forward: orNaN(vf), Lateral: orNaN(vl), YawRate: orNaN(wu)}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Trajectory loads a run's poses as a pose slice.
func (s *PoseStore) Trajectory(runID string) ([]odometry.Pose, error) {
	rows, err := s.ListByRun(runID)
	if err != nil {
		return nil, err
	}
	poses := make([]odometry.Pose, len(rows))
	for i, r := range rows {
		poses[i] = r.Pose
	}
	return poses, nil
}
