// Package imagestore resolves ITP image requests to image bytes.
//
// FS reads from a local directory (images/ by default), S3 reads objects from
// an S3-compatible bucket, and Cached wraps a local store and drops entries
// when fsnotify reports a change under its root.
package imagestore
