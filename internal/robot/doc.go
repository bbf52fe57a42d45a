// Package robot runs the robot side of the link.
//
// Ownership boundary:
// - State: authoritative robot fields, single writer, many readers
// - systems: robot coordinator, status, network and motor workers
// - Service: process lifecycle and the admin HTTP surface
//
// Only RobotSystem writes State. Every other system reads it or keeps its own
// store fed from bus events.
package robot
