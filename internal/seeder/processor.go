package seeder

import (
	"regexp"
	"strings"
)

const (
	// chunkTargetChars is the target chunk size; chunks break at sentence
	// boundaries so a chunk may run slightly short.
	chunkTargetChars = 1200
	// minChunkChars drops fragments too small to be useful evidence.
	minChunkChars = 100
)

// ContentProcessor handles text cleanup, chunking, and intent classification
type ContentProcessor struct {
	multiWhitespace *regexp.Regexp
	htmlTags        *regexp.Regexp
	sentenceEnd     *regexp.Regexp
}

func NewContentProcessor() *ContentProcessor {
	return &ContentProcessor{
		multiWhitespace: regexp.MustCompile(`\s+`),
		htmlTags:        regexp.MustCompile(`<[^>]*>`),
		sentenceEnd:     regexp.MustCompile(`([.!?])\s+`),
	}
}

// CleanContent removes leftover markup and normalizes whitespace
func (cp *ContentProcessor) CleanContent(content string) string {
	content = cp.htmlTags.ReplaceAllString(content, " ")
	content = cp.multiWhitespace.ReplaceAllString(content, " ")
	return strings.TrimSpace(content)
}

// ChunkText splits cleaned text into sentence-aligned chunks around the
// target size. Fragments below the minimum are dropped.
func (cp *ContentProcessor) ChunkText(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	sentences := cp.splitSentences(text)

	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if len(chunk) >= minChunkChars {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > chunkTargetChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

func (cp *ContentProcessor) splitSentences(text string) []string {
	marked := cp.sentenceEnd.ReplaceAllString(text, "$1\x00")

	var sentences []string
	for _, s := range strings.Split(marked, "\x00") {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// intentSignals maps intent labels to keywords found in URLs and content.
// URL matches outweigh content matches: a /pricing page about features is
// still a pricing page.
var intentSignals = []struct {
	intent      string
	urlKeywords []string
	keywords    []string
}{
	{"legal", []string{"/legal", "/terms", "/privacy"}, []string{"terms of service", "privacy policy", "gdpr", "liability", "governing law"}},
	{"policy", []string{"/policy", "/policies", "/refund", "/returns"}, []string{"refund policy", "return policy", "cancellation", "warranty", "shall not"}},
	{"pricing", []string{"/pricing", "/plans", "/billing"}, []string{"per month", "per year", "pricing", "subscription", "free trial", "billed"}},
	{"faq", []string{"/faq"}, []string{"frequently asked", "q:", "common questions"}},
	{"tutorial", []string{"/tutorial", "/guide", "/getting-started", "/quickstart"}, []string{"step 1", "getting started", "walkthrough", "follow these steps"}},
	{"documentation", []string{"/docs", "/documentation", "/api", "/reference"}, []string{"parameters", "endpoint", "returns", "configuration", "install"}},
	{"support", []string{"/support", "/help", "/contact", "/troubleshoot"}, []string{"contact us", "troubleshooting", "we're here to help", "submit a ticket"}},
	{"blog", []string{"/blog", "/news", "/changelog"}, []string{"posted on", "read more", "announcement", "release notes"}},
	{"product_info", []string{"/features", "/product", "/integrations"}, []string{"features", "integrates with", "built for", "capabilities"}},
	{"marketing", []string{"/about", "/customers", "/case-studies"}, []string{"trusted by", "our mission", "case study", "testimonial"}},
}

// ClassifyIntent assigns one intent label to a page based on its URL and
// content keywords.
func (cp *ContentProcessor) ClassifyIntent(pageURL, content string) string {
	urlLower := strings.ToLower(pageURL)
	contentLower := strings.ToLower(content)

	for _, signal := range intentSignals {
		for _, kw := range signal.urlKeywords {
			if strings.Contains(urlLower, kw) {
				return signal.intent
			}
		}
	}

	bestIntent := "unknown"
	bestScore := 0
	for _, signal := range intentSignals {
		score := 0
		for _, kw := range signal.keywords {
			if strings.Contains(contentLower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestIntent = signal.intent
		}
	}

	// One weak keyword hit is noise, not a classification.
	if bestScore < 2 {
		return "unknown"
	}
	return bestIntent
}
