package diskvfs

import "fmt"

// Unmount flushes and releases the image. It fails with ErrBusy while
// descriptors are open; use UnmountForce to close them implicitly.
func (fs *FS) Unmount() error {
	if fs == nil || fs.closed {
		return nil
	}
	if n := fs.OpenCount(); n > 0 {
		err := fmt.Errorf("%w: %d open descriptors", ErrBusy, n)
		fs.logger.LogUnmount(n, err)
		return err
	}
	return fs.release(0)
}

// UnmountForce closes every open descriptor and releases the image.
func (fs *FS) UnmountForce() error {
	if fs == nil || fs.closed {
		return nil
	}
	n := fs.OpenCount()
	clear(fs.fds)
	return fs.release(n)
}

func (fs *FS) release(openFiles int) error {
	fs.closed = true

	var firstErr error
	if err := fs.store.Sync(); err != nil {
		firstErr = err
	}
	if err := fs.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	fs.logger.LogUnmount(openFiles, firstErr)
	return firstErr
}
