package codegen

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStreamAppendsInOrder(t *testing.T) {
	s := NewStream("code")
	var want strings.Builder
	for i := 0; i < 2000; i++ {
		chunk := fmt.Sprintf("chunk %d;\n", i)
		want.WriteString(chunk)
		n, err := s.Write([]byte(chunk))
		if err != nil || n != len(chunk) {
			t.Fatalf("Write = %d, %v", n, err)
		}
	}
	if s.String() != want.String() {
		t.Fatalf("stream content differs from concatenated writes")
	}
	if s.Len() != want.Len() {
		t.Fatalf("Len = %d, want %d", s.Len(), want.Len())
	}
}

func TestStreamRejectsWritesAfterClose(t *testing.T) {
	s := NewStream("dump")
	if _, err := s.WriteString("a"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := s.WriteString("b"); !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("err = %v, want ErrStreamClosed", err)
	}
	if s.String() != "a" {
		t.Fatalf("content = %q", s.String())
	}
}
