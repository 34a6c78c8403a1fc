package lockfile

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"time"
)

// Take acquires the lock file at path, polling once a second until it
// wins or ctx is done. The lock holder's pid is recorded for debugging
// stuck locks. The returned closer releases the lock.
func Take(ctx context.Context, path string, waiting func()) (func(), error) {
	tk := time.NewTicker(time.Second)
	defer tk.Stop()

	var (
		f   *os.File
		err error
	)

	for {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			break
		}

		if !os.IsExist(err) {
			return nil, err
		}

		if waiting != nil {
			waiting()
		}

		select {
		case <-tk.C:
			// ok
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	closer := func() {
		os.Remove(path)
	}

	return closer, nil
}

// Holder reports the pid recorded in an existing lock file, or 0.
func Holder(path string) int {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return 0
	}

	var pid int
	fmt.Sscanf(string(data), "%d", &pid)

	return pid
}
