package primitives

import "testing"

func TestTerminal(t *testing.T) {
	cases := []struct {
		width int
		want  Link
	}{
		{3, 0xffffff},
		{4, 0xffffffff},
		{5, 0xffffffffff},
	}
	for _, c := range cases {
		if got := Terminal(c.width); got != c.want {
			t.Errorf("Terminal(%d) = %#x, want %#x", c.width, got, c.want)
		}
	}
}

func TestPutGetLinkRoundTrip(t *testing.T) {
	for _, width := range []int{3, 4, 5} {
		buf := make([]byte, width)
		want := Terminal(width) - 1
		PutLink(buf, width, want)
		got := GetLink(buf, width)
		if got != want {
			t.Errorf("width %d: round trip = %#x, want %#x", width, got, want)
		}
	}
}
