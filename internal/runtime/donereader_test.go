package runtime

import (
	"io"
	"strings"
	"testing"
)

func TestDoneReaderClosesOnEOF(t *testing.T) {
	dr := newDoneReader(strings.NewReader("payload"))

	select {
	case <-dr.done:
		t.Fatal("done closed before EOF")
	default:
	}

	b, err := io.ReadAll(dr)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "payload" {
		t.Fatalf("read %q, want payload", b)
	}

	select {
	case <-dr.done:
	default:
		t.Fatal("done not closed after EOF")
	}

	// A second EOF must not panic on a double close.
	if _, err := dr.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("Read after EOF = %v, want EOF", err)
	}
}
