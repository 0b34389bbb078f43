// Package daemon coordinates the long-running Reelvault process.
//
// It wires configuration, the job store, the library, the worker pool, the
// conversion processor, and the HTTP API into a single lifecycle with
// flock-based locking to prevent multiple instances. On startup the daemon
// sweeps jobs left in processing by a previous run before admitting new work.
//
// Keep orchestration logic here: conversion mechanics live in processor and
// transcode while the daemon focuses on startup, shutdown, and high level
// coordination.
package daemon
