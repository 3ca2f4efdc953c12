// Package blockstore provides fixed-size block I/O over a disk image.
//
// A Store splits a Device (a file, a shared memory mapping, or an in-memory
// buffer) into equally sized blocks and exposes Get/Put by block index.
//
// There is no caching: each Get or Put performs exactly one device read or
// write, so the order of calls is the only consistency mechanism the layers
// above rely on. Every call is counted; Stats returns the running totals.
//
//	store, err := blockstore.Open("disk.img", 64, func(o *blockstore.Options) {
//	    o.BlockSize = 1024
//	    o.Device = blockstore.DeviceMmap
//	})
//	if err != nil { ... }
//	defer store.Close()
//
//	buf, _ := store.Get(3)
//	buf[0] = 42
//	_ = store.Put(3, buf)
//
//	fmt.Println(store.Stats()) // {Reads:1 Writes:1 BlockSize:1024}
package blockstore
