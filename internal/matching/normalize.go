package matching

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// noiseRE strips per-platform title decorations that carry no identity signal:
// upload markers, lyric/visualizer tags, remaster years, featured-artist tails,
// and trailing " - Official ..." segments.
var noiseRE = regexp.MustCompile(`(?i)` +
	`\(official\s*(?:music\s*)?video\)|` +
	`\(official\s*audio\)|` +
	`\(official\s*lyric\s*video\)|` +
	`\(lyrics?\s*(?:video)?\)|` +
	`\(visualizer\)|` +
	`\(hd\)|` +
	`\(4k\)|` +
	`\(remaster(?:ed)?\s*\d*\)|` +
	`\(live(?:\s+at\s+[^)]*)?\)|` +
	`\(acoustic(?:\s+version)?\)|` +
	`\(radio\s*edit\)|` +
	`\(extended\s*(?:mix|version)?\)|` +
	`\[official\s*(?:music\s*)?video\]|` +
	`\[remaster(?:ed)?\s*\d*\]|` +
	`\(prod\.?\s+[^)]+\)|` +
	`\[prod\.?\s+[^\]]+\]|` +
	`f(?:ea)?t\.?\s+[\pL\pN_\s,&]+|` +
	`\s*[-–|]\s*(?:official|lyrics?|audio|visualizer|hd|4k).*$`)

// channelNoiseRE strips trailing channel decorations ("AURORA - Topic",
// "DaftPunkVEVO", "XYZ Records").
var channelNoiseRE = regexp.MustCompile(`(?i)\s*(vevo|official|music|records?|tv|channel|topic)\s*$`)

// slugRE expands "artist-name" style permalinks into words
var slugRE = regexp.MustCompile(`[-_]+`)

// artistSplitRE cuts a credit string at the first secondary-artist separator
var artistSplitRE = regexp.MustCompile(`(?i)\s+(?:feat|ft|featuring|&|,|x)\s+`)

// nonWordRE removes punctuation while keeping letters of every script
var nonWordRE = regexp.MustCompile(`[^\pL\pN_\s\-]`)

// fold case-folds and NFKD-decomposes, collapsing whitespace. All scripts are
// kept; nothing is forced to ASCII.
func fold(s string) string {
	folded := cases.Fold().String(norm.NFKD.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// NormalizeTitle strips noise patterns, folds unicode, collapses whitespace.
func NormalizeTitle(s string) string {
	s = noiseRE.ReplaceAllString(s, " ")
	s = nonWordRE.ReplaceAllString(s, " ")
	return fold(s)
}

// NormalizeArtist takes only the primary artist (before feat./&) and folds it.
func NormalizeArtist(s string) string {
	parts := artistSplitRE.Split(s, 2)
	return fold(parts[0])
}

// NormalizeChannel strips uploader-channel noise ("DaftPunkVEVO" loses "VEVO").
func NormalizeChannel(channel string) string {
	return fold(channelNoiseRE.ReplaceAllString(channel, ""))
}

// CleanTitle removes a leading "Artist - " prefix common in YouTube uploads,
// when the normalized artist matches the start of the normalized title.
func CleanTitle(title, artist string) string {
	clean := NormalizeTitle(title)
	if artist == "" {
		return clean
	}

	foldedArtist := regexp.QuoteMeta(NormalizeArtist(artist))
	prefixRE, err := regexp.Compile(`(?i)^\[?` + foldedArtist + `[\]:]?\s*[-–]\s*`)
	if err != nil {
		return clean
	}

	stripped := strings.TrimSpace(prefixRE.ReplaceAllString(clean, ""))
	if stripped != "" && !strings.EqualFold(stripped, clean) {
		return stripped
	}
	return clean
}

// BuildQueries returns deduplicated query strings from most to least specific.
//
// The raw title is always included last: special characters stripped by
// normalization (label codes like [LIP006], unicode symbols, colons) are
// meaningless to the scorer but help platform search engines rank niche
// tracks correctly.
func BuildQueries(title, artist string) []string {
	var clean string
	if artist != "" {
		clean = CleanTitle(title, artist)
	} else {
		clean = NormalizeTitle(title)
	}
	fullNorm := NormalizeTitle(title)

	var queries []string
	if artist != "" {
		queries = append(queries, artist+" "+clean)
		if !strings.EqualFold(fullNorm, clean) {
			queries = append(queries, artist+" "+fullNorm)
		}
		queries = append(queries, clean)
	} else {
		queries = append(queries, fullNorm)
	}
	queries = append(queries, title)

	seen := make(map[string]bool, len(queries))
	result := make([]string, 0, len(queries))
	for _, q := range queries {
		key := strings.ToLower(strings.TrimSpace(q))
		if !seen[key] {
			seen[key] = true
			result = append(result, q)
		}
	}
	return result
}
