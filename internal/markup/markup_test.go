package markup

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"blank", " \r\n ", ""},
		{"single", "hello", "<p>hello</p>"},
		{"two paragraphs", "para1\r\n\r\npara2", "<p>para1</p><p>para2</p>"},
		{"line breaks", "a\r\nb\r\nc\r\n\r\nd", "<p>a<br />b<br />c</p><p>d</p>"},
		{"unix newlines", "a\n\nb", "<p>a</p><p>b</p>"},
		{"extra blank lines", "a\n\n\n\nb", "<p>a</p><p>b</p>"},
		{"escaped", "1 < 2 & \"x\"", "<p>1 &lt; 2 &amp; &#34;x&#34;</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Paragraphs(tt.in)))
		})
	}
}

func TestParagraphsNeverEmitsScriptTags(t *testing.T) {
	out := string(Paragraphs("<script>a</script>\r\n\r\nb"))

	assert.NotContains(t, out, "<script")
	assert.Equal(t, 2, strings.Count(out, "<p>"))
	assert.Equal(t, "<p>&lt;script&gt;a&lt;/script&gt;</p><p>b</p>", out)
}

func TestDayMonth(t *testing.T) {
	assert.Equal(t, "2 Jan", DayMonth(time.Date(2024, time.January, 2, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "", DayMonth(time.Time{}))
}

func TestAgo(t *testing.T) {
	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "3 minutes ago", Ago(now.Add(-3*time.Minute), now))
	assert.Equal(t, "", Ago(time.Time{}, now))
}
