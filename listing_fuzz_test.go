package treeftp

import (
	"strings"
	"testing"
)

func FuzzParseListLine(f *testing.F) {
	f.Add("-rw-r--r--   1 user  group     1024 Dec 20 10:30 file.txt")
	f.Add("drwxr-xr-x   2 user  group     4096 Dec 20 10:30 my dir")
	f.Add("drwxr-xr-x   2 user  group     4096 Dec 20 10:30 ..")
	f.Add("09-24-24  10:30AM       <DIR>          logger")
	f.Add("total 0")

	f.Fuzz(func(t *testing.T, line string) {
		name, dir, ok := entry(line)
		if !ok {
			return
		}
		if dir != IsDirectory(line) {
			t.Errorf("entry(%q) dir = %v, IsDirectory = %v", line, dir, IsDirectory(line))
		}
		if name == "." || name == ".." {
			t.Errorf("entry(%q) kept %q", line, name)
		}
		if strings.ContainsAny(name, "\t\n") {
			t.Errorf("entry(%q) name %q keeps field separators", line, name)
		}
	})
}

func FuzzParsePassive(f *testing.F) {
	f.Add("227 Entering Passive Mode (127,0,0,1,195,80).")
	f.Add("229 Entering Extended Passive Mode (|||50000|)")
	f.Add("227 (0,0,0,0,4,1)")
	f.Add("229 (|||)")

	f.Fuzz(func(t *testing.T, line string) {
		// Just ensure it doesn't panic
		_, _ = parsePASV(line)
		_, _ = parseEPSV(line, nil)
	})
}
