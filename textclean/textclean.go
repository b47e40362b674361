// Package textclean normalizes tweet text into GloVe-style tokens
// (<url>, <user>, <smile>, <number>, <hashtag>, <elong>, emoji classes).
package textclean

import (
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

const (
	eyes = `[8:=;]`
	nose = "['`\\-]?"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

var beforeRepeats = []rule{
	{regexp.MustCompile(`https?://\S+\b|www\.(\w +\.)+\S*`), " <URL> "},
	{regexp.MustCompile(`/`), " / "},
	{regexp.MustCompile(`@\w+`), "<USER>"},
	{regexp.MustCompile(`(?i)` + eyes + nose + `[)d]+|[)d]+` + nose + eyes), " <SMILE> "},
	{regexp.MustCompile(`(?i)` + eyes + nose + `p+`), " <LOLFACE> "},
	{regexp.MustCompile(eyes + nose + `\(+|\)+` + nose + eyes), " <SADFACE> "},
	{regexp.MustCompile(eyes + nose + `[/|l*]`), " <NEUTRALFACE> "},
	{regexp.MustCompile(`<3`), " <HEART> "},
	{regexp.MustCompile(`[-+]?[.\d]*[\d]+[:,.\d]*`), "<NUMBER>"},
	{regexp.MustCompile(`#\S+`), " <HASHTAG> "},
}

// RE2 has no backreferences; these two rules run on regexp2.
var (
	repeatedPunctuation = regexp2.MustCompile(`([!?.])\1+`, regexp2.None)
	elongatedCharacters = regexp2.MustCompile(`(.)\1{2,}`, regexp2.None)
)

var afterRepeats = []rule{
	{regexp.MustCompile(`\B'\b|\b'\B`), ""},
	{regexp.MustCompile(`(?i)\Bn[’']t\b`), " n't"},
	{regexp.MustCompile(`(?i)(\w)[’']d\b`), "${1} 'd"},
	{regexp.MustCompile(`(?i)(\w)[’']s\b`), "${1} 's"},
	{regexp.MustCompile(`(?i)(\w)[’']m\b`), "${1} 'm"},
	{regexp.MustCompile(`(?i)(\w)[’']ll\b`), "${1} 'll"},
	{regexp.MustCompile(`(?i)(\w)[’']ve\b`), "${1} 've"},
	{regexp.MustCompile(`(?i)(\w)[’']re\b`), "${1} 're"},
	{regexp.MustCompile(`[` +
		`\x{1F600}-\x{1F608}\x{1F609}\x{1F60A}-\x{1F60E}\x{1F617}-\x{1F619}\x{1F61A}-\x{1F61D}` +
		`\x{1F642}\x{1F911}\x{1F913}\x{1F917}\x{1F920}-\x{1F921}\x{1F923}\x{1F929}\x{263A}` +
		`]+`), " <EMOJIPOSITIVE> "},
	{regexp.MustCompile(`[` +
		`\x{1F60F}\x{1F610}-\x{1F611}\x{1F62E}-\x{1F62F}\x{1F634}\x{1F636}\x{1F644}\x{1F910}` +
		`\x{1F914}\x{1F924}-\x{1F925}\x{1F928}\x{1F92B}\x{1F92D}\x{1F9D0}` +
		`]+`), " <EMOJINEUTRAL> "},
	{regexp.MustCompile(`[` +
		`\x{1F47F}\x{1F612}-\x{1F616}\x{1F61E}-\x{1F61F}\x{1F620}-\x{1F625}\x{1F626}-\x{1F629}` +
		`\x{1F62A}-\x{1F62D}\x{1F630}-\x{1F631}\x{1F633}\x{1F635}\x{1F637}\x{1F641}\x{1F912}` +
		`\x{1F915}\x{1F922}\x{1F927}\x{1F92A}\x{1F92C}\x{1F92E}\x{1F92F}\x{2639}` +
		`]+`), " <EMOJINEGATIVE> "},
	{regexp.MustCompile(`[` +
		`\x{0080}-\x{02AF}\x{0300}-\x{03FF}\x{0600}-\x{06FF}\x{0C00}-\x{0C7F}\x{1DC0}-\x{1DFF}` +
		`\x{1E00}-\x{1EFF}\x{2000}-\x{209F}\x{20D0}-\x{214F}\x{2190}-\x{23FF}\x{2460}-\x{25FF}` +
		`\x{2600}-\x{27EF}\x{2900}-\x{29FF}\x{2B00}-\x{2BFF}\x{2C60}-\x{2C7F}\x{2E00}-\x{2E7F}` +
		`\x{3000}-\x{303F}\x{A490}-\x{A4CF}\x{E000}-\x{F8FF}\x{FE00}-\x{FE0F}\x{FE30}-\x{FE4F}` +
		`\x{1F000}-\x{1F02F}\x{1F0A0}-\x{1F0FF}\x{1F100}-\x{1F64F}\x{1F680}-\x{1F6FF}` +
		`\x{1F910}-\x{1F96B}\x{1F980}-\x{1F9E0}` +
		`]+`), " <EMOJIOTHER> "},
	{regexp.MustCompile(`([.,!?()])`), " ${1} "},
	{regexp.MustCompile(` +`), " "},
}

var (
	punctuation = regexp.MustCompile(`[.,!?()]`)
	spaces      = regexp.MustCompile(` +`)
)

// Clean lowercases content and replaces urls, mentions, faces, numbers, hashtags,
// elongations and emoji with tokens. Punctuation is kept as separate tokens.
func Clean(content string) string {
	content = strings.ToLower(content)
	content = applyRules(content, beforeRepeats)

	if replaced, err := repeatedPunctuation.Replace(content, "", -1, -1); err == nil {
		content = replaced
	}

	elongations := 0
	replaced, err := elongatedCharacters.ReplaceFunc(content, func(m regexp2.Match) string {
		elongations++
		char := m.GroupByNumber(1).String()
		return char + char
	}, -1, -1)
	if err == nil && elongations > 0 {
		content = replaced + " <ELONG>"
	}

	content = applyRules(content, afterRepeats)
	return strings.TrimSpace(strings.ToLower(content))
}

// CleanForTFIDF is Clean with punctuation removed.
func CleanForTFIDF(content string) string {
	content = Clean(content)
	content = punctuation.ReplaceAllString(content, "")
	content = spaces.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

func applyRules(content string, rules []rule) string {
	for _, r := range rules {
		content = r.pattern.ReplaceAllString(content, r.replacement)
	}
	return content
}
