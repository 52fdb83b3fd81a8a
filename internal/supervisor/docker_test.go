package supervisor

import (
	"encoding/binary"
	"testing"
)

func frame(kind byte, payload string) []byte {
	buf := make([]byte, 8+len(payload))
	buf[0] = kind
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	return buf
}

func TestDecodeLogFrames(t *testing.T) {
	var raw []byte
	raw = append(raw, frame(1, "hello\n")...)
	raw = append(raw, frame(2, "world\n")...)

	got := decodeLogFrames(raw)
	want := "hello\nworld"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDecodeLogFramesTruncatedTail(t *testing.T) {
	raw := append(frame(1, "complete\n"), 0x01, 0x00, 0x00)
	got := decodeLogFrames(raw)
	if got == "" {
		t.Error("expected a non-empty decode even with a truncated trailing frame")
	}
}

func TestCPUPercent(t *testing.T) {
	var s containerStats
	s.CPUStats.CPUUsage.TotalUsage = 200
	s.PreCPUStats.CPUUsage.TotalUsage = 100
	s.CPUStats.SystemCPUUsage = 2000
	s.PreCPUStats.SystemCPUUsage = 1000
	s.CPUStats.OnlineCPUs = 2

	got := s.cpuPercent()
	want := (100.0 / 1000.0) * 2 * 100.0
	if got != want {
		t.Errorf("cpuPercent() = %v, want %v", got, want)
	}
}

func TestCPUPercentNoSystemDelta(t *testing.T) {
	var s containerStats
	if got := s.cpuPercent(); got != 0 {
		t.Errorf("cpuPercent() = %v, want 0 when system delta is zero", got)
	}
}

func TestMemPercent(t *testing.T) {
	var s containerStats
	s.MemoryStats.Usage = 50
	s.MemoryStats.Limit = 200
	if got := s.memPercent(); got != 25 {
		t.Errorf("memPercent() = %v, want 25", got)
	}
}
