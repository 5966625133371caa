// Package enrollment manages lead membership in campaign sequences.
//
// Enrolling a lead creates the per-lead state machine record the
// sequencer worker drives. This package owns enrollment creation,
// listing, and the manual reactivate transition for errored
// enrollments. Automatic transitions (sending, replies) belong to the
// workers, which operate on the same rows directly.
package enrollment
