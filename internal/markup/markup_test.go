package markup

import "testing"

func TestStrip(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"plain text", "plain text"},
		{"<p>a</p><p>b</p>", "ab"},
		{"<div class=\"x\">x</div>\n\n<br/>y", "x y"},
		{"before <unclosed tag", "before"},
		{"1 < 2 is true", "1"},
		{"", ""},
		{"<p>Tom &amp; Jerry</p>", "Tom & Jerry"},
		{"use &lt;b&gt; for bold", "use <b> for bold"},
		{"a&nbsp;&nbsp;b", "a b"},
		{"&#39;quoted&#39;", "'quoted'"},
	}
	for _, c := range cases {
		if got := Strip(c.in); got != c.want {
			t.Errorf("Strip(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseQuery(t *testing.T) {
	cases := []struct {
		raw  string
		want Query
	}{
		{"foo [bar]", Query{Text: "foo", Tag: "bar"}},
		{"[Go] channels  select", Query{Text: "channels select", Tag: "go"}},
		{"just text", Query{Text: "just text"}},
		{"[sql]", Query{Text: "", Tag: "sql"}},
		{"  spaced  ", Query{Text: "spaced"}},
	}
	for _, c := range cases {
		if got := ParseQuery(c.raw); got != c.want {
			t.Errorf("ParseQuery(%q) = %+v, want %+v", c.raw, got, c.want)
		}
	}
}
