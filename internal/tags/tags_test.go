package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		tag  string
		want string
		ok   bool
	}{
		{
			name: "simple",
			text: "before <bible>the world</bible> after",
			tag:  "bible",
			want: "the world",
			ok:   true,
		},
		{
			name: "nested same tag resolves to outer span",
			text: "<bible>outer <bible>inner</bible> tail</bible>",
			tag:  "bible",
			want: "outer <bible>inner</bible> tail",
			ok:   true,
		},
		{
			name: "double nesting",
			text: "<b>1<b>2<b>3</b>2</b>1</b>",
			tag:  "b",
			want: "1<b>2<b>3</b>2</b>1",
			ok:   true,
		},
		{
			name: "absent tag",
			text: "no tags here",
			tag:  "bible",
			ok:   false,
		},
		{
			name: "unterminated open yields nothing",
			text: "<bible>never closed",
			tag:  "bible",
			ok:   false,
		},
		{
			name: "nested unterminated yields nothing",
			text: "<bible>outer <bible>inner</bible> no outer close",
			tag:  "bible",
			ok:   false,
		},
		{
			name: "first of two top-level spans",
			text: "<t>one</t> and <t>two</t>",
			tag:  "t",
			want: "one",
			ok:   true,
		},
		{
			name: "empty content",
			text: "<t></t>",
			tag:  "t",
			want: "",
			ok:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Extract(tc.text, tc.tag)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name string
		text string
		tag  string
		want string
	}{
		{
			name: "single span",
			text: "keep <t>drop</t> keep",
			tag:  "t",
			want: "keep  keep",
		},
		{
			name: "every top-level span",
			text: "<t>a</t>mid<t>b</t>end",
			tag:  "t",
			want: "midend",
		},
		{
			name: "nested span removed whole",
			text: "x<t>a<t>b</t>c</t>y",
			tag:  "t",
			want: "xy",
		},
		{
			name: "unmatched open untouched",
			text: "x<t>dangling",
			tag:  "t",
			want: "x<t>dangling",
		},
		{
			name: "no tag is no-op",
			text: "plain",
			tag:  "t",
			want: "plain",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Remove(tc.text, tc.tag))
		})
	}
}

func TestExtractAll(t *testing.T) {
	text := "<bible>B</bible> noise <chat_name>N</chat_name>"
	got := ExtractAll(text, "bible", "chat_name", "character")

	assert.Equal(t, map[string]string{
		"bible":     "B",
		"chat_name": "N",
	}, got)
	_, present := got["character"]
	assert.False(t, present)
}
