package clipboard

import (
	"errors"
	"testing"
)

func TestFakeKeepsLastCopy(t *testing.T) {
	var f Fake
	if got := f.Last(); got != "" {
		t.Fatalf("Last() = %q before any copy", got)
	}
	for _, s := range []string{"first", "second"} {
		if err := f.Copy(s); err != nil {
			t.Fatal(err)
		}
	}
	if got := f.Last(); got != "second" {
		t.Errorf("Last() = %q, want %q", got, "second")
	}
}

func TestFakeError(t *testing.T) {
	f := Fake{Err: ErrUnavailable}
	if err := f.Copy("x"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
	if f.Last() != "" {
		t.Error("failed copy was recorded")
	}
}
