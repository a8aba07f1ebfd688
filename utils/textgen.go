package utils

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrTextUnavailable is returned when a transform yields nothing usable.
var ErrTextUnavailable = errors.New("text service unavailable")

// Rewrite intents.
const (
	IntentImprove = "improve"
	IntentConcise = "concise"
	IntentExplain = "explain"
)

// TextService is the writing assistant behind the /ai and /assistant endpoints.
type TextService interface {
	Answer(question string, keywords []string) (string, error)
	Rewrite(text, intent string) (string, error)
	Tags(text string) ([]string, error)
	Summarize(text string, lines int) (string, error)
	Translate(text, targetLang string) (string, error)
	TweetThread(text string) ([]string, error)
	Embed(texts []string) ([][]float64, error)
}

// MockTextService is a deterministic, offline TextService.
type MockTextService struct{}

var _ TextService = MockTextService{}

var stopWords = toSet("the", "and", "for", "with", "this", "that", "you", "your", "are", "was", "were",
	"from", "into", "will", "have", "has", "had", "to", "of", "in", "on", "at", "by", "it", "as", "is",
	"a", "an", "or", "be", "we", "our", "us")

var (
	wordRe       = regexp.MustCompile(`[a-z][a-z0-9-]{2,}`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

var synonyms = [][2]string{
	{"good", "great"}, {"bad", "poor"}, {"students", "learners"}, {"university", "campus"},
	{"improve", "enhance"}, {"create", "craft"}, {"build", "develop"}, {"fast", "rapid"},
}

var synonymRes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(synonyms))
	for i, pair := range synonyms {
		out[i] = regexp.MustCompile(`(?i)\b` + pair[0] + `\b`)
	}
	return out
}()

// TopKeywords returns up to n non-stopword words, most frequent first, ties in order of first use.
func TopKeywords(text string, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, w := range wordRe.FindAllString(strings.ToLower(text), -1) {
		if stopWords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > n {
		order = order[:n]
	}
	return order
}

// SplitSentences breaks text after '.', '!' or '?' followed by whitespace.
func SplitSentences(text string) []string {
	clean := whitespaceRe.ReplaceAllString(text, " ")
	var out []string
	start := 0
	for i := 0; i < len(clean); i++ {
		c := clean[i]
		if (c == '.' || c == '!' || c == '?') && i+1 < len(clean) && clean[i+1] == ' ' {
			out = appendTrimmed(out, clean[start:i+1])
			start = i + 2
			i++
		}
	}
	if start < len(clean) {
		out = appendTrimmed(out, clean[start:])
	}
	return out
}

func appendTrimmed(out []string, s string) []string {
	if s = strings.TrimSpace(s); s != "" {
		out = append(out, s)
	}
	return out
}

// Rewrite swaps a fixed synonym table, then applies the intent and appends keyword hashtags.
func (MockTextService) Rewrite(text, intent string) (string, error) {
	out := text
	for i, re := range synonymRes {
		replacement := synonyms[i][1]
		out = re.ReplaceAllStringFunc(out, func(m string) string {
			r, _ := utf8.DecodeRuneInString(m)
			if unicode.IsUpper(r) {
				return strings.ToUpper(replacement[:1]) + replacement[1:]
			}
			return replacement
		})
	}
	out = strings.TrimSpace(whitespaceRe.ReplaceAllString(out, " "))

	switch intent {
	case IntentConcise:
		sents := SplitSentences(out)
		keep := int(math.Ceil(float64(len(sents)) * 0.6))
		if keep < 1 {
			keep = 1
		}
		if keep < len(sents) {
			sents = sents[:keep]
		}
		out = strings.Join(sents, " ")
	case IntentExplain:
		out = "In simple terms: " + out
	}

	if kws := TopKeywords(text, 3); len(kws) > 0 {
		tags := make([]string, len(kws))
		for i, k := range kws {
			tags[i] = "#" + k
		}
		out += "\n\nKeywords: " + strings.Join(tags, " ")
	}
	if out == "" {
		return "", ErrTextUnavailable
	}
	return out, nil
}

// Tags returns up to ten keyword tags.
func (MockTextService) Tags(text string) ([]string, error) {
	return TopKeywords(text, 10), nil
}

// Summarize picks the lines best-scoring sentences as bullets.
func (MockTextService) Summarize(text string, lines int) (string, error) {
	sents := SplitSentences(text)
	if len(sents) == 0 {
		return "", ErrTextUnavailable
	}
	kws := TopKeywords(text, 5)
	type scored struct {
		s     string
		score float64
	}
	ranked := make([]scored, len(sents))
	for i, s := range sents {
		lower := strings.ToLower(s)
		score := math.Min(1, float64(len(s))/100)
		for _, k := range kws {
			if strings.Contains(lower, k) {
				score += 2
			}
		}
		ranked[i] = scored{s: s, score: score}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if lines < len(ranked) {
		ranked = ranked[:lines]
	}
	bullets := make([]string, len(ranked))
	for i, r := range ranked {
		bullets[i] = "• " + r.s
	}
	return strings.Join(bullets, "\n"), nil
}

// Translate only labels the target language.
func (MockTextService) Translate(text, targetLang string) (string, error) {
	return fmt.Sprintf("Translated to %s: %s", targetLang, text), nil
}

const tweetChunk = 260

// TweetThread splits text into 5 to 10 numbered parts.
func (MockTextService) TweetThread(text string) ([]string, error) {
	clean := []rune(strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " ")))
	var parts []string
	for i := 0; i < len(clean); i += tweetChunk {
		end := i + tweetChunk
		if end > len(clean) {
			end = len(clean)
		}
		parts = append(parts, string(clean[i:end]))
	}
	if len(parts) < 5 {
		extra := []rune(" " + strings.Join(TopKeywords(text, 6), " • "))
		if len(extra) > tweetChunk {
			extra = extra[:tweetChunk]
		}
		for len(parts) < 5 {
			parts = append(parts, string(extra))
		}
	}
	if len(parts) > 10 {
		parts = parts[:10]
	}
	for i := range parts {
		parts[i] = fmt.Sprintf("(%d/%d) %s", i+1, len(parts), parts[i])
	}
	return parts, nil
}

// Embed returns a small deterministic vector per text, seeded by its FNV-1a hash.
func (MockTextService) Embed(texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		h := fnv.New32a()
		_, _ = h.Write([]byte(t))
		seed := h.Sum32()
		dims := 8 + int(seed%3)
		x := seed
		if x == 0 {
			x = 123456789
		}
		vec := make([]float64, dims)
		for d := range vec {
			x ^= x << 13
			x ^= x >> 17
			x ^= x << 5
			v := float64(x)/float64(math.MaxUint32)*2 - 1
			vec[d] = math.Round(v*1e6) / 1e6
		}
		out[i] = vec
	}
	return out, nil
}

// campusTopics maps trigger words to a canned campus guide, checked in order.
var campusTopics = []struct {
	triggers []string
	reply    string
}{
	{[]string{"vignan", "university"}, "I'm your campus assistant for Vignan Diaries. I can help you explore posts on placements, clubs, events and research. " +
		"Ask something specific, such as \"placements interview tips\" or \"events hackathon\", or tap a suggestion."},
	{[]string{"placement", "placements", "jobs"}, "Placements: keep your resume to one page, practice DSA and system design, and track drives on the Training & Placement Cell portal. " +
		"Join mock interviews and prepare STAR-format answers for HR."},
	{[]string{"club", "clubs"}, "Clubs: the coding, robotics, cultural and sports clubs all hold orientations. " +
		"Join their groups and volunteer at events to grow your network."},
	{[]string{"event", "fest", "hackathon"}, "Events: watch the notice board and the official handles. " +
		"For hackathons, form a team of 3 or 4, shortlist problem statements early and prepare a short demo."},
	{[]string{"research", "paper", "journal"}, "Research: find a faculty mentor, pick a narrow topic, survey the last few years of literature and build a minimal prototype."},
	{[]string{"exam", "schedule", "timetable"}, "Exams: check the timetable from the exam cell, practice previous papers and space out your revision."},
	{[]string{"admission", "fee", "scholarship"}, "Admissions & Fees: deadlines are on the admissions portal. " +
		"For scholarships keep income certificates and marksheets ready and apply early."},
}

const genericAnswer = "Here's a quick guide: define your goal, list a few actionable steps, set a timeline and share progress with peers or faculty for feedback. " +
	"I can also fetch related posts for inspiration."

// Answer picks a canned campus guide by keyword or substring, else a generic one.
func (MockTextService) Answer(question string, keywords []string) (string, error) {
	lower := strings.ToLower(question)
	kw := toSet(keywords...)
	for _, topic := range campusTopics {
		for _, w := range topic.triggers {
			if kw[w] || strings.Contains(lower, w) {
				return topic.reply, nil
			}
		}
	}
	return genericAnswer, nil
}

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
