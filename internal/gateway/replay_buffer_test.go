package gateway

import (
	"strconv"
	"testing"
)

func payload(i int64) []byte { return []byte(strconv.FormatInt(i, 10)) }

func TestReplayBuffer_Since(t *testing.T) {
	rb := NewReplayBuffer(100)
	for i := int64(1); i <= 10; i++ {
		rb.Push(i, payload(i))
	}

	got, complete := rb.Since(7)
	if !complete {
		t.Fatal("expected complete replay")
	}
	if len(got) != 3 {
		t.Fatalf("Since(7): expected 3, got %d", len(got))
	}
	for i, data := range got {
		if want := strconv.Itoa(8 + i); string(data) != want {
			t.Errorf("entry[%d] = %s, want %s", i, data, want)
		}
	}
	if rb.LastSeq() != 10 {
		t.Errorf("LastSeq() = %d, want 10", rb.LastSeq())
	}
}

func TestReplayBuffer_Wraparound(t *testing.T) {
	rb := NewReplayBuffer(5)

	// Push 8 entries, the first 3 are evicted
	for i := int64(1); i <= 8; i++ {
		rb.Push(i, payload(i))
	}
	if rb.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", rb.Len())
	}

	got, complete := rb.Since(3)
	if !complete || len(got) != 5 {
		t.Fatalf("Since(3): complete=%v len=%d, want true/5", complete, len(got))
	}
	if string(got[0]) != "4" || string(got[4]) != "8" {
		t.Errorf("got %s..%s, want 4..8", got[0], got[4])
	}

	// Seq 2 and 3 are gone, the replay has a hole.
	if _, complete := rb.Since(1); complete {
		t.Error("expected incomplete replay after eviction")
	}
}

func TestReplayBuffer_Empty(t *testing.T) {
	rb := NewReplayBuffer(10)
	got, complete := rb.Since(0)
	if len(got) != 0 || !complete {
		t.Fatalf("empty buffer: got %d entries complete=%v", len(got), complete)
	}
	if rb.LastSeq() != 0 {
		t.Errorf("LastSeq() = %d, want 0", rb.LastSeq())
	}
}

func TestReplayBuffer_CopiesData(t *testing.T) {
	rb := NewReplayBuffer(2)
	data := []byte("abc")
	rb.Push(1, data)
	data[0] = 'x'

	got, _ := rb.Since(0)
	if string(got[0]) != "abc" {
		t.Errorf("buffer aliased caller slice: %s", got[0])
	}
}
