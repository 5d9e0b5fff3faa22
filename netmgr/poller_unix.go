package netmgr

import (
	"time"

	"golang.org/x/sys/unix"
)

// fdSetBits is the number of bits in one unix.FdSet word slot on this
// platform, used to compute the index/bit pair for a given fd.
const fdSetBits = 64

func fdZero(set *unix.FdSet) {
	for i := range set.Bits {
		set.Bits[i] = 0
	}
}

func fdSet(fd int, set *unix.FdSet) {
	set.Bits[fd/fdSetBits] |= 1 << (uint(fd) % fdSetBits)
}

func fdIsSet(fd int, set *unix.FdSet) bool {
	return set.Bits[fd/fdSetBits]&(1<<(uint(fd)%fdSetBits)) != 0
}

// UnixPoller is the production Poller, backed directly by the select(2)
// syscall via golang.org/x/sys/unix — the same primitive the original
// select-based network manager is named for.
type UnixPoller struct{}

// Select blocks until one of fds is readable or has an error condition, or
// timeout elapses, then returns the subset reported in either set.
func (UnixPoller) Select(fds []int, timeout time.Duration) ([]int, error) {
	if len(fds) == 0 {
		time.Sleep(timeout)
		return nil, nil
	}

	var readSet, errSet unix.FdSet
	fdZero(&readSet)
	fdZero(&errSet)
	maxFD := 0
	for _, fd := range fds {
		fdSet(fd, &readSet)
		fdSet(fd, &errSet)
		if fd > maxFD {
			maxFD = fd
		}
	}

	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	n, err := unix.Select(maxFD+1, &readSet, nil, &errSet, &tv)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]int, 0, n)
	for _, fd := range fds {
		if fdIsSet(fd, &readSet) || fdIsSet(fd, &errSet) {
			ready = append(ready, fd)
		}
	}
	return ready, nil
}
