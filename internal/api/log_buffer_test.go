package api

import "testing"

func TestLogWriterParsesLevels(t *testing.T) {
	buf := NewLogBuffer(10)
	lw := &logWriter{buf: buf}

	lw.Write([]byte("2024/03/01 09:30:00 Console started\n"))
	lw.Write([]byte("2024/03/01 09:30:01 WARN: Preload failed (ignored)\n2024/03/01 09:30:02 ERROR: Failed to save session token\n"))

	entries := buf.Entries(nil)
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	want := []struct{ level, message string }{
		{LogLevelInfo, "Console started"},
		{LogLevelWarn, "Preload failed (ignored)"},
		{LogLevelError, "Failed to save session token"},
	}
	for i, w := range want {
		if entries[i].Level != w.level || entries[i].Message != w.message {
			t.Errorf("entry %d = %+v, want %s %q", i, entries[i], w.level, w.message)
		}
	}

	if got := buf.Entries([]string{"WARN", " error"}); len(got) != 2 {
		t.Errorf("filtered = %+v", got)
	}
}

func TestLogBufferDropsOldest(t *testing.T) {
	buf := NewLogBuffer(2)
	buf.Add(LogLevelInfo, "one")
	buf.Add(LogLevelInfo, "two")
	buf.Add(LogLevelInfo, "three")

	entries := buf.Entries(nil)
	if len(entries) != 2 || entries[0].Message != "two" || entries[1].Message != "three" {
		t.Errorf("entries = %+v", entries)
	}
}
