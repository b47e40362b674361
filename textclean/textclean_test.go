package textclean

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"url", "Check https://example.com/page now", "check <url> now"},
		{"mention and smile", "@Alice I love it :)", "<user> i love it <smile>"},
		{"elongation and repeated punctuation", "Sooooo good!!!", "soo good <elong>"},
		{"contraction hashtag number", "I can't stop #HODL 100x", "i ca n't stop <hashtag> <number>x"},
		{"possessive", "Bitcoin's price", "bitcoin 's price"},
		{"emoji", "great 😀 news 😡", "great <emojipositive> news <emojinegative>"},
		{"heart", "hodl <3", "hodl <heart>"},
		{"punctuation kept", "Wow. Really?", "wow . really ?"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Clean(tt.content)); diff != "" {
				t.Errorf("Clean(%q) mismatch (-want +got):\n%s", tt.content, diff)
			}
		})
	}
}

func TestCleanForTFIDF(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"Wow. Really?", "wow really"},
		{"(BTC), ETH!", "btc eth"},
		{"@bob :)", "<user> <smile>"},
	}

	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, CleanForTFIDF(tt.content)); diff != "" {
			t.Errorf("CleanForTFIDF(%q) mismatch (-want +got):\n%s", tt.content, diff)
		}
	}
}
