// Package completion turns periodic inspection of a signal file into a
// single completion or failure event.
//
// A helper launcher appends markers to the signal file while it runs a
// command: START when the command begins, then END on success or FAIL on
// failure. The Watcher rereads the whole file on a fixed interval, derives a
// State from the markers present, and settles its future exactly once:
//
//	watcher := completion.Start(path, fs, "make build")
//	defer watcher.Dispose()
//
//	select {
//	case <-watcher.Done():
//	    return watcher.Err()
//	case <-ctx.Done():
//	    return nil
//	}
//
// State is recomputed from scratch on every poll. START is observational;
// END without START still resolves. A failed read is retried on the next
// tick; after MaxReadFailures consecutive failures the watcher rejects with
// ErrSignalUnreadable so a vanished file cannot keep a caller waiting forever.
package completion
