// Package s3 implements blobstore.Store on AWS S3 using aws-sdk-go-v2.
// Segment writes stream through the s3/manager multipart uploader; reads use
// ranged GETs so a partition segment never has to be downloaded whole just
// to check its footer.
package s3
