package types

// Version is the canonical project version, shared by the CLI and the
// journal and manifest record formats.
const Version = "0.3.0"

// RecordVersion is the version stamped on journal and manifest records.
// It changes only when a record field is removed or reinterpreted.
const RecordVersion = "1"
