package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// Stub renderer bodies for WithStubRenderer. Each script receives the real
// renderer argv, so the output path is always the final argument.
const (
	// StubScriptSucceed writes a small artifact to the output path and exits 0.
	StubScriptSucceed = `for last; do :; done
printf 'rendered' > "$last"
exit 0
`
	// StubScriptFail exits nonzero with a diagnostic on stderr and no output.
	StubScriptFail = `echo "boom: invalid data found when processing input" >&2
exit 1
`
	// StubScriptNoOutput exits 0 without producing the output file.
	StubScriptNoOutput = `exit 0
`
	// StubScriptHang sleeps far past any test deadline, exiting on SIGTERM.
	StubScriptHang = `sleep 300
`
	// StubScriptStubborn ignores SIGTERM so only SIGKILL can stop it.
	StubScriptStubborn = `trap '' TERM
sleep 300
`
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) string {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	chunk := make([]byte, chunkSize)
	for i := range chunk {
		chunk[i] = byte('a' + i%26)
	}
	remaining := size
	for remaining > 0 {
		n := int64(len(chunk))
		if remaining < n {
			n = remaining
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= n
	}
	return path
}
