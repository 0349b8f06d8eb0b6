// Package scanner keeps the index in sync with a project tree. A scan
// fingerprints every candidate file, describes and embeds new or changed
// ones through a worker pool, and purges entries for files that vanished.
// Watch mode rescans after debounced filesystem events.
package scanner
