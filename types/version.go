package types

// Version is the canonical zp version.
// The CLI, the publication-info file and ledger records all report it.
const Version = "0.4.0"
