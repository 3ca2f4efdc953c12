// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "images/")
//
//	m, err := snapshot.Export(ctx, fs, store)
//
// # Features
//
//   - Range reads for streaming imports
//   - Multipart uploads for large images
//   - Automatic pagination for listing
//   - DynamoDB-backed CURRENT commits for concurrent pushers (DDBCommitStore)
package s3
