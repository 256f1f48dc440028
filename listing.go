package treeftp

import "strings"

// IsDirectory reports whether a LIST line describes a directory. Listings
// are assumed to be in Unix "ls -l" format, where the type is the first
// character of the permission field.
func IsDirectory(line string) bool {
	return len(line) > 0 && line[0] == 'd'
}

// ParseName returns the entry name of a LIST line: every field from the
// ninth on, joined by single spaces. A line with fewer than nine fields has
// no name and yields "".
//
// Example: "drwxr-xr-x 2 ftp ftp 4096 Jan 02 15:04 my dir" -> "my dir"
func ParseName(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return ""
	}
	return strings.Join(fields[8:], " ")
}

// entry classifies one LIST line. Blank lines and the "." and ".." entries
// some servers emit are skipped.
func entry(line string) (name string, dir bool, ok bool) {
	if strings.TrimSpace(line) == "" {
		return "", false, false
	}
	name = ParseName(line)
	if name == "." || name == ".." {
		return "", false, false
	}
	return name, IsDirectory(line), true
}
