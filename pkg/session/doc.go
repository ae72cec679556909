/*
Package session keeps the live interpreter sessions of one ifgate process.

A Registry maps session IDs to running interpreters. Turns of one session run one at a
time in arrival order; turns of different sessions run in parallel. Idle sessions are
evicted by SweepIdle, which RunSweeper calls on a ticker.
*/
package session
