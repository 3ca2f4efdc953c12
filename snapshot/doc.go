// Package snapshot copies disk images to and from a blobstore.Store.
//
// An export streams the image through a compressor into a new blob, writes a
// JSON manifest describing it, and finally points CURRENT at the manifest:
//
//	images/<id>.img.zst
//	manifests/<id>.json
//	CURRENT              -> "manifests/<id>.json"
//
// CURRENT is written last, so a crashed export never changes what Import
// restores by default. Imports verify length and CRC32-C of the decompressed
// image against the manifest before returning.
package snapshot
