// Package surface is the operator side of the link: a replicated view of the
// robot's store, an owned-update pump that sends local writes to the robot,
// and a Service that keeps the connection, arming heartbeat and ping running.
package surface
