package native

import (
	"errors"
	"strings"
	"testing"
)

func TestBoundedString(t *testing.T) {
	full := []byte(strings.Repeat("a", BufferCapacity))

	tests := []struct {
		name string
		buf  []byte
		want string
	}{
		{"nul terminated", []byte("Mesh\x00garbage"), "Mesh"},
		{"empty", []byte{0, 'x'}, ""},
		{"no terminator", []byte("PointCloud"), "PointCloud"},
		{"filled to capacity", full, strings.Repeat("a", BufferCapacity)},
		{"nil", nil, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := BoundedString(tc.buf); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestQuery(t *testing.T) {
	s, ok, err := Query(func(buf []byte) (bool, error) {
		if len(buf) != BufferCapacity {
			t.Errorf("buffer len = %d", len(buf))
		}
		copy(buf, "Mesh\x00")
		return true, nil
	})
	if err != nil || !ok || s != "Mesh" {
		t.Errorf("got %q, %v, %v", s, ok, err)
	}

	s, ok, err = Query(func(buf []byte) (bool, error) {
		copy(buf, "stale")
		return false, nil
	})
	if err != nil || ok || s != "" {
		t.Errorf("no value: got %q, %v, %v", s, ok, err)
	}

	boom := errors.New("trap")
	_, _, err = Query(func([]byte) (bool, error) { return true, boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected trap error, got %v", err)
	}
}

func TestLogLevelString(t *testing.T) {
	tests := map[LogLevel]string{
		LogDebug:    "debug",
		LogInfo:     "info",
		LogWarning:  "warning",
		LogError:    "error",
		LogLevel(9): "unknown",
	}
	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("%d: got %q, want %q", level, got, want)
		}
	}
}
