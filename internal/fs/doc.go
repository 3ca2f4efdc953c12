// Package fs abstracts how image files are opened so that block I/O failures
// can be injected in tests.
//
//   - [LocalFS]: opens files with the os package; [Default] is a LocalFS.
//   - [FaultyFS]: wraps another FileSystem and fails reads, writes, syncs or
//     closes according to per-file [Fault] rules.
//
// Tests inject a FaultyFS into the block store:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("disk.img", fs.Fault{FailAfterBytes: 4096})
//
// Operations take no context.Context. Positioned reads and writes on a local
// image are not interruptible at the syscall level.
package fs
