// Package diskvfs implements a small Unix-like file system stored inside a
// single disk-image file.
//
// The image is divided into fixed-size blocks: a control block, a free-block
// map, an inode table and data blocks. Files and directories are addressed by
// paths given as component slices, and opened objects by small integer
// descriptors, much like the POSIX file API.
//
// # Quick Start
//
//	fs, _ := diskvfs.Init("disk.img", 1024)
//	defer fs.Unmount()
//
//	_ = fs.Creat([]string{"docs"}, true)
//	_ = fs.Creat([]string{"docs", "readme"}, false)
//
//	fd, _ := fs.Open([]string{"docs", "readme"})
//	_, _ = fs.Write(fd, []byte("hello"))
//	_ = fs.Seek(fd, 0)
//	buf := make([]byte, 5)
//	n, _ := fs.Read(fd, buf)
//	_ = fs.Close(fd)
//
// # Directory Traversal
//
// StatChild restarts the traversal of an open directory and returns its first
// entry; StatNext returns the entry at the cursor and advances it. Both return
// ErrEndOfDirectory when there is nothing left:
//
//	dir, _ := fs.Open([]string{"docs"})
//	_, err := fs.StatChild(dir)
//	for err == nil {
//	    var st diskvfs.Stat
//	    if st, err = fs.StatNext(dir); err == nil {
//	        fmt.Println(st.Name, st.Size)
//	    }
//	}
//
// # Statistics
//
// Every block read and write is counted. FS.Stats returns the totals, and the
// stats package renders them as text or exports them to Prometheus.
//
// # Consistency
//
// FS.Check walks the tree and cross-checks it against the free-block map and
// the inode table, reporting leaked, doubly used or dangling structures.
package diskvfs
