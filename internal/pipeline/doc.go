// Package pipeline orchestrates file discovery, per-file reconstruction and
// trimming, and batch summary reporting.
//
// Files:
//   - discover.go: non-recursive scan of the input directory by extension.
//   - runner.go: Run, the sequential per-file loop, and the Toolchain and
//     Recorder interfaces it drives.
//   - stats.go: RunStats and FileResult.
//   - analyze.go: the --analyze report over input point clouds.
package pipeline
