// Package logging configures slog handlers and shared attribute helpers for
// Reelvault components. It provides a console handler emitting key=value lines
// with the component name inlined, a JSON handler for machine consumption, and
// standardized field keys so job, video, and batch identifiers stay consistent
// across packages.
package logging
