package vciwire

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestStreamCarriesEnvelopesBackToBack(t *testing.T) {
	var buf bytes.Buffer
	in := []*Envelope{
		NewRequest(1, "open_can_device", []byte(`{"dev_type":4}`)),
		NewResponse(1, "open_can_device", []byte(`{"data":"ok"}`)),
		NewNotification("can-data", []byte("ID=123 DATA=0102")),
		NewRequest(2, "transmit_can_data", []byte{0x00}),
	}
	for _, e := range in {
		if err := Write(&buf, e); err != nil {
			t.Fatalf("Write(%s) error: %v", e.Name, err)
		}
	}

	for i, want := range in {
		got, err := Read(&buf)
		if err != nil {
			t.Fatalf("Read() #%d error: %v", i, err)
		}
		if got.Kind != want.Kind || got.Seq != want.Seq || got.Name != want.Name {
			t.Errorf("#%d got %s, want %s", i, got, want)
		}
		if !bytes.Equal(got.Body, want.Body) {
			t.Errorf("#%d body = %02X, want %02X", i, got.Body, want.Body)
		}
	}
	if buf.Len() != 0 {
		t.Errorf("%d bytes left on the stream", buf.Len())
	}
}

func TestReadRejectsCorruptChecksum(t *testing.T) {
	data, err := NewRequest(7, "read_board_info", []byte(`{}`)).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1]++

	_, err = Read(bytes.NewReader(data))
	if !errors.Is(err, ErrChecksum) {
		t.Fatalf("error = %v, want ErrChecksum", err)
	}
}

func TestReadShortStream(t *testing.T) {
	data, err := NewRequest(3, "stop_can_device", []byte(`{"dev_type":4}`)).MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	_, err = Read(bytes.NewReader(data[:len(data)-4]))
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestMarshalLimits(t *testing.T) {
	if _, err := (&Envelope{Name: strings.Repeat("x", 256)}).MarshalBinary(); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("long name error = %v, want ErrNameTooLong", err)
	}
	if _, err := (&Envelope{Name: "n", Body: make([]byte, 0x10000)}).MarshalBinary(); !errors.Is(err, ErrBodyTooBig) {
		t.Errorf("big body error = %v, want ErrBodyTooBig", err)
	}
}

func TestNotificationSeqZero(t *testing.T) {
	n := NewNotification("error-message", []byte("bus off"))
	if n.Seq != 0 {
		t.Errorf("notification seq = %d, want 0", n.Seq)
	}
	if n.Kind != Notification {
		t.Errorf("kind = %v", n.Kind)
	}
}
