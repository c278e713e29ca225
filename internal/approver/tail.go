package approver

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Tail returns up to n characters decoded from the last n bytes of the
// file at path. Missing or unreadable transcripts yield an empty
// string, never an error; invalid byte sequences are replaced.
func Tail(path string, n int) string {
	if path == "" || n <= 0 {
		return ""
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Debug("transcript unavailable", "path", path, "error", err)
		return ""
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		slog.Debug("transcript stat failed", "path", path, "error", err)
		return ""
	}
	offset := info.Size() - int64(n)
	if offset < 0 {
		offset = 0
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return ""
	}
	data, err := io.ReadAll(f)
	if err != nil {
		slog.Debug("transcript read failed", "path", path, "error", err)
		return ""
	}

	decoded := strings.ToValidUTF8(string(data), "�")
	runes := []rune(decoded)
	if len(runes) > n {
		runes = runes[len(runes)-n:]
	}
	return string(runes)
}
