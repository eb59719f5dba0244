// Package odometry reconstructs a 2D vehicle trajectory from stacked camera
// frames.
//
// The pipeline runs in sequential passes over one loaded sequence:
//
//  1. BuildStacks concatenates stack_size consecutive frames along the
//     channel axis.
//  2. A VelocityRegressor maps each stack to a body-frame velocity
//     (forward, lateral, yaw rate), scaled to physical units.
//  3. Smooth fuses overlapping window predictions with harmonic-decay
//     weights and normalises them by the window duration.
//  4. Integrate dead-reckons the smoothed velocities into global poses.
//  5. WritePoses serialises each pose as a flattened 3x4 matrix.
//
// Sequences are independent; RunBatch may process several in parallel, but
// the integration recurrence within one sequence is strictly sequential.
package odometry
