package sensor

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

func TestParseFrame(t *testing.T) {
	cases := []struct {
		name string
		line string
		want Frame
		ok   bool
	}{
		{"bare", "120 340 560 412\n", Frame{X: 120, Y: 340, Z: 560, EDA: 412}, true},
		{"with seq and digital", "17 1 0 120.5 340.5 560.5 412.5\n", Frame{X: 120.5, Y: 340.5, Z: 560.5, EDA: 412.5}, true},
		{"short", "1 2 3\n", Frame{}, false},
		{"garbage", "a b c d\n", Frame{}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := parseFrame(c.line)
			if c.ok && err != nil {
				t.Fatalf("parseFrame(%q): %v", c.line, err)
			}
			if !c.ok {
				if err == nil {
					t.Fatalf("parseFrame(%q): expected error", c.line)
				}
				return
			}
			if got != c.want {
				t.Errorf("parseFrame(%q): got %+v, want %+v", c.line, got, c.want)
			}
		})
	}
}

func TestSynthetic_FramesWithinExtents(t *testing.T) {
	s := NewSynthetic(Range{0, 1000}, Range{0, 1000}, Range{100, 200})
	defer s.Close()

	frames, err := s.Read(50)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(frames) != 50 {
		t.Fatalf("frame count: got %d, want 50", len(frames))
	}
	for i, f := range frames {
		if f.X < 0 || f.X > 1000 || f.Y < 0 || f.Y > 1000 {
			t.Errorf("frame %d: position out of extents: %+v", i, f)
		}
		if f.Z < 100 || f.Z > 200 {
			t.Errorf("frame %d: Z out of extents: %+v", i, f)
		}
		if f.EDA < 0 || f.EDA > 1023 {
			t.Errorf("frame %d: EDA out of ADC range: %+v", i, f)
		}
	}
}

func TestSynthetic_ClosedReadFails(t *testing.T) {
	s := NewSynthetic(Range{0, 1}, Range{0, 1}, Range{0, 1})
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.Read(1); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close: got %v, want ErrClosed", err)
	}
}

// fakeBridge is a minimal acquisition bridge speaking the line protocol.
func fakeBridge(t *testing.T, ln net.Listener) {
	t.Helper()
	conn, err := ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		switch {
		case strings.HasPrefix(line, "start"):
			fmt.Fprint(conn, "ok\n")
		case strings.HasPrefix(line, "read"):
			var n int
			fmt.Sscanf(line, "read %d", &n)
			for i := 0; i < n; i++ {
				fmt.Fprintf(conn, "%d 100 200 300 %d\n", i, 400+i)
			}
		case strings.HasPrefix(line, "stop"):
			return
		}
	}
}

func TestHardware_DialReadClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go fakeBridge(t, ln)

	h, err := Dial(DialOptions{
		Address:     ln.Addr().String(),
		Baud:        10,
		Channels:    []int{0},
		DialTimeout: time.Second,
		ReadTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	frames, err := h.Read(3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("frame count: got %d, want 3", len(frames))
	}
	want := Frame{X: 100, Y: 200, Z: 300, EDA: 400}
	if frames[0] != want {
		t.Errorf("frame 0: got %+v, want %+v", frames[0], want)
	}
	if frames[2].EDA != 402 {
		t.Errorf("frame 2 EDA: got %v, want 402", frames[2].EDA)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := h.Read(1); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close: got %v, want ErrClosed", err)
	}
}

func TestDial_UnreachableFailsCleanly(t *testing.T) {
	// Grab a port and close it so the dial is refused immediately.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	_, err = Dial(DialOptions{
		Address:     addr,
		Baud:        10,
		Channels:    []int{0},
		DialTimeout: 200 * time.Millisecond,
		ReadTimeout: 200 * time.Millisecond,
		Retries:     0,
	})
	if err == nil {
		t.Fatal("expected connection error for unreachable bridge")
	}
}
