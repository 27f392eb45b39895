// Package blobstore provides the storage abstraction under the partitioned
// occurrence store: named, immutable-once-written blobs on a local file
// system or an S3-compatible object store.
//
// Backends:
//   - LocalStore: files on disk, memory-mapped for reads.
//   - MemoryStore: in-process map, for tests and ephemeral runs.
//   - minio.Store: any S3-compatible endpoint via minio-go.
//   - s3.Store: AWS S3 via aws-sdk-go-v2 with manager-based uploads.
package blobstore
