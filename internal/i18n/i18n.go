// the i18n package holds the display dictionaries for the supported languages
// and negotiates the language of a request.
package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

//go:embed dictionaries/*.json
var dictionaryFiles embed.FS

// supported languages, the first is the fallback for Match
var supported = []language.Tag{
	language.English,
	language.Latvian,
}

var matcher = language.NewMatcher(supported)

// Dictionary maps message keys to display text
type Dictionary struct {
	Lang    string
	entries map[string]string
}

var dictionaries = mustLoad()

func mustLoad() map[string]*Dictionary {
	out := make(map[string]*Dictionary, len(supported))
	for _, tag := range supported {
		lang := tag.String()
		data, err := dictionaryFiles.ReadFile("dictionaries/" + lang + ".json")
		if err != nil {
			panic(fmt.Sprintf("missing dictionary for %s: %v", lang, err))
		}
		var entries map[string]string
		if err := json.Unmarshal(data, &entries); err != nil {
			panic(fmt.Sprintf("invalid dictionary for %s: %v", lang, err))
		}
		out[lang] = &Dictionary{Lang: lang, entries: entries}
	}
	return out
}

// Languages returns the supported language codes
func Languages() []string {
	langs := make([]string, len(supported))
	for i, tag := range supported {
		langs[i] = tag.String()
	}
	return langs
}

// Lookup returns the dictionary for lang ("en", "lv")
func Lookup(lang string) (*Dictionary, bool) {
	d, ok := dictionaries[lang]
	return d, ok
}

// Match picks the best supported language for an Accept-Language header value
func Match(acceptLanguage string) string {
	tags, _, _ := language.ParseAcceptLanguage(acceptLanguage)
	_, index, _ := matcher.Match(tags...)
	return supported[index].String()
}

// Other returns the language to offer in the language switcher
func Other(lang string) string {
	if lang == "lv" {
		return "en"
	}
	return "lv"
}

// T returns the text for key, or the key itself if there is no entry
func (d *Dictionary) T(key string) string {
	if v, ok := d.entries[key]; ok {
		return v
	}
	return key
}

// Format returns the text for key with {name} placeholders replaced from args (name, value pairs)
func (d *Dictionary) Format(key string, args ...any) string {
	pairs := make([]string, 0, len(args))
	for i := 0; i+1 < len(args); i += 2 {
		pairs = append(pairs, "{"+fmt.Sprint(args[i])+"}", fmt.Sprint(args[i+1]))
	}
	return strings.NewReplacer(pairs...).Replace(d.T(key))
}
