package classifier

import "testing"

func TestClassifyFromHeaders(t *testing.T) {
	cases := []struct {
		name   string
		header string
		body   string
		want   ContentType
	}{
		{"html header", "text/html; charset=utf-8", "<html></html>", TypeHTML},
		{"json header", "application/json", `{"a":1}`, TypeJSON},
		{"pdf header", "application/pdf", "%PDF-1.7", TypePDF},
		{"rss header", "application/rss+xml", "<rss></rss>", TypeRSS},
		{"atom header", "application/atom+xml", "<feed></feed>", TypeRSS},
		{"csv header", "text/csv", "a,b,c", TypeCSV},
		{"yaml header", "application/x-yaml", "key: value", TypeYAML},
		{"xml header sniffs rss", "text/xml", `<rss version="2.0"></rss>`, TypeRSS},
		{"xml header plain", "text/xml", "<root><leaf/></root>", TypeXML},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.header, []byte(tc.body)); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestClassifySniffing(t *testing.T) {
	cases := []struct {
		name string
		body string
		want ContentType
	}{
		{"json object", `{"price": 10}`, TypeJSON},
		{"json array", `[1,2,3]`, TypeJSON},
		{"html doctype", "<!DOCTYPE html><html><body>x</body></html>", TypeHTML},
		{"html fragment", `<div class="price">10</div>`, TypeHTML},
		{"rss feed", `<?xml version="1.0"?><rss version="2.0"><channel></channel></rss>`, TypeRSS},
		{"bare xml", `<?xml version="1.0"?><inventory><item/></inventory>`, TypeXML},
		{"pdf magic", "%PDF-1.4 rest", TypePDF},
		{"plain text", "just some words", TypeText},
		{"empty", "", TypeText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify("", []byte(tc.body)); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
