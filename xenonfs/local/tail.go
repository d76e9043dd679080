package local

import (
	"time"

	"golang.org/x/sys/unix"

	"xenon/xenonerr"
)

// fileGrowthWatcher blocks tailingReader until a single file it is
// already reading has grown or been removed. A general multi-path
// fsnotify watcher (named events, add/remove-by-path, a long-lived
// Events channel) is more machinery than the live-tail path needs:
// tailingReader only ever watches one path at a time, for one blocking
// wait, and doesn't care which kind of change woke it -- only that one
// did. unix.Poll on the raw inotify fd gets there without a reader
// goroutine or an event-struct decode.
type fileGrowthWatcher struct {
	fd int
}

// newFileGrowthWatcher opens an inotify instance watching path for
// modification or removal.
func newFileGrowthWatcher(path string) (*fileGrowthWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		return nil, xenonerr.Wrap(AdaptorName, xenonerr.NoSuchPath, "init inotify watch", err)
	}
	if _, err := unix.InotifyAddWatch(fd, path, unix.IN_MODIFY|unix.IN_DELETE_SELF); err != nil {
		unix.Close(fd)
		return nil, xenonerr.Wrap(AdaptorName, xenonerr.NoSuchPath, "watch "+path, err)
	}
	return &fileGrowthWatcher{fd: fd}, nil
}

// wait blocks until the watched path changes or timeout elapses,
// whichever comes first, and always releases the watch's fd.
func (w *fileGrowthWatcher) wait(timeout time.Duration) error {
	defer unix.Close(w.fd)

	fds := []unix.PollFd{{Fd: int32(w.fd), Events: unix.POLLIN}}
	for {
		_, err := unix.Poll(fds, int(timeout/time.Millisecond))
		if err == unix.EINTR {
			continue
		}
		return err
	}
}
