package handler

import (
	"context"
	"testing"
)

func TestStreamDeviceConsentLifecycle(t *testing.T) {
	device := newStreamDevice()

	// Unknown until the client reports; must not read as a denial.
	if _, err := device.RequestPermission(context.Background()); err == nil {
		t.Fatal("RequestPermission() before report returned no error")
	}

	device.SetPermission(true)
	granted, err := device.RequestPermission(context.Background())
	if err != nil || !granted {
		t.Fatalf("RequestPermission() = %v %v, want granted", granted, err)
	}

	device.SetPermission(false)
	if granted, _ := device.RequestPermission(context.Background()); granted {
		t.Fatal("revoked consent still reads granted")
	}
}

func TestStreamDeviceAssemblesFrames(t *testing.T) {
	device := newStreamDevice()
	device.SetPermission(true)

	rec, err := device.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	device.Feed([]byte("abc"))
	device.Feed([]byte("def"))

	data, mime, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if string(data) != "abcdef" {
		t.Errorf("assembled data = %q, want frames in order", data)
	}
	if mime != "audio/webm" {
		t.Errorf("mime = %q, want audio/webm", mime)
	}

	// Frames after stop are dropped, not appended.
	device.Feed([]byte("ghi"))
	if string(data) != "abcdef" {
		t.Errorf("data changed after stop: %q", data)
	}
}

func TestStreamDeviceDiscardDropsData(t *testing.T) {
	device := newStreamDevice()
	rec, _ := device.Acquire(context.Background())

	device.Feed([]byte("partial"))
	rec.Discard()

	if _, _, err := rec.Stop(); err == nil {
		t.Fatal("Stop() after Discard returned no error")
	}
}

func TestFrameLevelBounds(t *testing.T) {
	if got := frameLevel(nil); got != 0 {
		t.Errorf("frameLevel(nil) = %f, want 0", got)
	}

	silence := make([]byte, 32)
	for i := range silence {
		silence[i] = 128
	}
	if got := frameLevel(silence); got != 0 {
		t.Errorf("frameLevel(silence) = %f, want 0", got)
	}

	loud := []byte{0, 255, 0, 255}
	got := frameLevel(loud)
	if got <= 0 || got > 1 {
		t.Errorf("frameLevel(loud) = %f, want within (0, 1]", got)
	}
}
