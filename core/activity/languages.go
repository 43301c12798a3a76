package activity

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const DefaultLanguageCode = "en"

// supportedLanguages are the language codes an activity may be authored in.
var supportedLanguages = []language.Tag{
	language.English,
	language.Arabic,
	language.Bulgarian,
	language.Catalan,
	language.Czech,
	language.Danish,
	language.German,
	language.Greek,
	language.Spanish,
	language.Persian,
	language.Finnish,
	language.French,
	language.Hebrew,
	language.Hindi,
	language.Croatian,
	language.Hungarian,
	language.Indonesian,
	language.Italian,
	language.Japanese,
	language.Korean,
	language.Lithuanian,
	language.Latvian,
	language.Dutch,
	language.Norwegian,
	language.Polish,
	language.Portuguese,
	language.Romanian,
	language.Russian,
	language.Slovak,
	language.Slovenian,
	language.Serbian,
	language.Swedish,
	language.Swahili,
	language.Thai,
	language.Turkish,
	language.Ukrainian,
	language.Vietnamese,
	language.Chinese,
}

var supportedCodes = func() map[string]language.Tag {
	m := make(map[string]language.Tag, len(supportedLanguages))
	for _, tag := range supportedLanguages {
		m[tag.String()] = tag
	}
	return m
}()

type Language struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// IsSupportedLanguage reports whether code is exactly one of the supported language codes.
func IsSupportedLanguage(code string) bool {
	_, ok := supportedCodes[code]
	return ok
}

// Languages lists the supported languages, sorted by code.
func Languages() []Language {
	namer := display.English.Tags()
	langs := make([]Language, 0, len(supportedLanguages))
	for code, tag := range supportedCodes {
		langs = append(langs, Language{Code: code, Description: namer.Name(tag)})
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i].Code < langs[j].Code })
	return langs
}
