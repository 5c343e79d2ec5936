package users

import (
	"errors"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+4915112345678", "+4915112345678"},
		{"  +49 151 1234 5678 ", "+4915112345678"},
		{"004915112345678", "+4915112345678"},
		{"4915112345678", "+4915112345678"},
		{"\t00 1 555 0100", "+15550100"},
	}
	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if err != nil {
			t.Fatalf("NormalizePhone(%q): unexpected err %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizePhone_RejectsEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "+", "00"} {
		if _, err := NormalizePhone(in); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("NormalizePhone(%q): expected ErrInvalidArgument, got %v", in, err)
		}
	}
}

func TestNormalizeAll_DedupesAndSkipsInvalid(t *testing.T) {
	got := normalizeAll([]string{"0049 1", "+491", "", "492"})
	if len(got) != 2 || got[0] != "+491" || got[1] != "+492" {
		t.Fatalf("unexpected result %v", got)
	}
}
