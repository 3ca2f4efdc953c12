// Package hash provides the CRC32-Castagnoli checksum used for the control
// block and for snapshot blobs.
//
//	checksum := hash.CRC32C(data)
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
