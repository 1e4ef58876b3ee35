//go:build !unix

package storage

import "os"

// Without flock only the in-process mutex serializes index writes.
func lockFile(*os.File) error   { return nil }
func unlockFile(*os.File) error { return nil }
