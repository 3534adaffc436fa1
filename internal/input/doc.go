// Package input reads classification CSV exports.
//
// The file must start with a header row naming at least the label and
// cluster_id columns. Column order is free and extra columns are ignored.
// The whole file is materialized in memory.
package input
