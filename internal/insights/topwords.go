package insights

import (
	"regexp"
	"sort"
	"strings"
)

// Words of at least four ASCII letters. Shorter tokens are almost
// always chat filler.
var wordPattern = regexp.MustCompile(`\b[a-zA-Z]{4,}\b`)

// English plus romanized Hindi/Hinglish filler. Bilingual chats are the
// common case for the exports this ingests, so both sides are filtered.
var topicStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {}, "from": {}, "as": {},
	"is": {}, "was": {}, "are": {}, "were": {}, "been": {}, "be": {}, "have": {}, "has": {},
	"had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {}, "can": {}, "need": {},
	"that": {}, "this": {}, "these": {}, "those": {}, "i": {}, "you": {}, "he": {},
	"she": {}, "it": {}, "we": {}, "they": {}, "what": {}, "which": {}, "who": {},
	"when": {}, "where": {}, "why": {}, "how": {}, "just": {}, "like": {}, "so": {},
	"very": {}, "really": {}, "also": {}, "too": {}, "only": {}, "yeah": {}, "yes": {},
	"no": {}, "ok": {}, "okay": {}, "um": {}, "uh": {}, "oh": {}, "ah": {}, "hmm": {},
	"im": {}, "i'm": {}, "it's": {}, "don't": {}, "doesn't": {}, "didn't": {},
	"won't": {}, "can't": {}, "your": {}, "my": {}, "me": {}, "u": {}, "ur": {},
	"r": {}, "gonna": {}, "wanna": {}, "gotta": {}, "lol": {}, "haha": {}, "hehe": {},
	"lmao": {}, "omg": {}, "wtf": {}, "idk": {}, "lmfao": {}, "good": {}, "nice": {},
	"great": {}, "fine": {}, "well": {}, "right": {}, "now": {}, "then": {}, "here": {},
	"there": {}, "some": {}, "any": {}, "all": {}, "more": {}, "most": {}, "other": {},
	"being": {}, "much": {}, "such": {}, "same": {}, "than": {}, "them": {}, "their": {},

	"hai": {}, "hain": {}, "tha": {}, "thi": {}, "ho": {}, "hota": {}, "hoti": {},
	"hote": {}, "nhi": {}, "nahi": {}, "nahin": {}, "na": {}, "mat": {}, "maat": {},
	"mai": {}, "main": {}, "mein": {}, "mujhe": {}, "mujhko": {}, "mera": {},
	"meri": {}, "mere": {}, "tu": {}, "tum": {}, "tumhe": {}, "tumko": {}, "tera": {},
	"teri": {}, "tere": {}, "aap": {}, "aapko": {}, "kya": {}, "kyu": {}, "kyun": {},
	"kab": {}, "kaise": {}, "kaha": {}, "kahan": {}, "kaun": {}, "kis": {}, "yeh": {},
	"ye": {}, "woh": {}, "wo": {}, "yahan": {}, "wahan": {}, "isko": {}, "usko": {},
	"isse": {}, "usse": {}, "kar": {}, "karo": {}, "karna": {}, "karni": {},
	"karte": {}, "kiya": {}, "ki": {}, "ke": {}, "ka": {}, "ko": {}, "bhi": {},
	"hi": {}, "toh": {}, "par": {}, "per": {}, "lekin": {}, "magar": {},
	"aur": {}, "ya": {}, "se": {}, "pe": {}, "tak": {}, "liye": {}, "wala": {},
	"wali": {}, "wale": {}, "waala": {}, "waali": {}, "ek": {}, "teen": {},
	"abhi": {}, "baad": {}, "pehle": {}, "phir": {}, "fir": {}, "haan": {}, "han": {},
	"ji": {}, "sahi": {}, "theek": {}, "thik": {}, "accha": {}, "acha": {},
	"achha": {}, "kuch": {}, "koi": {}, "sab": {}, "sabhi": {}, "bahut": {},
	"bohot": {}, "zyada": {}, "kam": {}, "thoda": {}, "raha": {}, "rahi": {},
	"rahe": {}, "gaya": {}, "gayi": {}, "gaye": {}, "aaya": {}, "aayi": {},
	"aaye": {}, "bola": {}, "boli": {}, "bole": {}, "bol": {}, "baat": {},
	"bata": {}, "batao": {}, "dekh": {}, "dekho": {}, "chalo": {}, "chal": {},
	"jao": {}, "aao": {}, "ruk": {}, "ruko": {}, "sun": {}, "suno": {}, "arre": {},
	"oye": {}, "yaar": {}, "bhai": {}, "dude": {}, "bro": {}, "hoga": {},
	"hogi": {}, "hoge": {}, "hua": {}, "hui": {}, "hue": {}, "karenge": {},
	"karungi": {}, "lena": {}, "dena": {}, "jana": {}, "aana": {}, "milna": {},
	"batana": {}, "dekhna": {}, "omitted": {}, "media": {}, "image": {},
	"video": {}, "audio": {}, "sticker": {}, "gif": {},
}

type wordFreq struct {
	word  string
	count int
}

// TopWords extracts the n most frequent meaningful words across texts.
// Words need at least three distinct letters to count; the final pick
// prefers longer words (5+ chars) or ones seen at least three times.
// Ordering is deterministic: count descending, then alphabetical.
func TopWords(texts []string, n int) []string {
	counts := make(map[string]int)
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, word := range wordPattern.FindAllString(strings.ToLower(text), -1) {
			if _, stop := topicStopwords[word]; stop {
				continue
			}
			if distinctLetters(word) < 3 {
				continue
			}
			counts[word]++
		}
	}

	freqs := make([]wordFreq, 0, len(counts))
	for w, c := range counts {
		freqs = append(freqs, wordFreq{w, c})
	}
	sort.Slice(freqs, func(i, j int) bool {
		if freqs[i].count != freqs[j].count {
			return freqs[i].count > freqs[j].count
		}
		return freqs[i].word < freqs[j].word
	})

	limit := n * 3
	if limit > len(freqs) {
		limit = len(freqs)
	}
	var top []string
	for _, f := range freqs[:limit] {
		if len(top) >= n {
			break
		}
		if len(f.word) >= 5 || f.count >= 3 {
			top = append(top, f.word)
		}
	}
	if len(top) > 0 {
		return top
	}

	for i := 0; i < len(freqs) && i < n; i++ {
		top = append(top, freqs[i].word)
	}
	return top
}

func distinctLetters(word string) int {
	seen := make(map[rune]struct{}, len(word))
	for _, r := range word {
		seen[r] = struct{}{}
	}
	return len(seen)
}
