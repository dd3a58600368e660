package types

// Version is the canonical project version.
// The CLI, the results header and the trace format share this version.
const Version = "0.3.0"

// TraceFormatVersion is the version stamped on every trace frame.
// It moves in lockstep with Version.
const TraceFormatVersion = Version
