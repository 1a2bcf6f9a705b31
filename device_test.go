package newfs

import "testing"

func TestMemDeviceReadWriteRoundTrip(t *testing.T) {
	dev := NewMemDevice(64, 16)
	want := []byte("0123456789abcdef")
	if _, err := dev.WriteAt(want, 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}
	got := make([]byte, len(want))
	if _, err := dev.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch: got %q want %q", got, want)
	}
}

func TestMemDeviceOutOfRange(t *testing.T) {
	dev := NewMemDevice(16, 8)
	if _, err := dev.WriteAt([]byte{1, 2, 3}, 15); err == nil {
		t.Fatalf("expected an error writing past the device end")
	}
	if _, err := dev.ReadAt(make([]byte, 4), 32); err == nil {
		t.Fatalf("expected an error reading from past the device end")
	}
}

func TestMemDeviceSnapshotIsIndependent(t *testing.T) {
	dev := NewMemDevice(8, 8)
	dev.WriteAt([]byte{1, 2, 3, 4}, 0)
	snap := dev.Snapshot()

	dev.WriteAt([]byte{9, 9, 9, 9}, 0)

	if snap[0] == 9 {
		t.Fatalf("snapshot should not observe writes made after it was taken")
	}
}

func TestBlockIOReadWriteIsReadModifyWrite(t *testing.T) {
	dev := NewMemDevice(32, 8)
	io := NewBlockIO(dev)

	if err := io.Write(0, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0x11, 0x22}); err != nil {
		t.Fatalf("initial aligned write: %v", err)
	}

	// An unaligned, sub-unit write must leave neighboring bytes in the
	// same I/O unit untouched, since Write always re-reads the full
	// aligned window before overlaying.
	if err := io.Write(2, []byte{0x00}); err != nil {
		t.Fatalf("unaligned write: %v", err)
	}

	got, err := io.Read(0, 8)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []byte{0xAA, 0xBB, 0x00, 0xDD, 0xEE, 0xFF, 0x11, 0x22}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}
