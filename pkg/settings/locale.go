package settings

import (
	"os"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// First day of the week per region, from CLDR supplemental weekData.
// Regions not listed start on Monday.
var (
	fridayRegions   = []string{"MV"}
	saturdayRegions = []string{"AE", "AF", "BH", "DJ", "DZ", "EG", "IQ", "IR", "JO", "KW", "LY", "OM", "QA", "SD", "SY"}
	sundayRegions   = []string{
		"AG", "AS", "BD", "BR", "BS", "BT", "BW", "BZ", "CA", "CN", "CO", "DM", "DO", "ET",
		"GT", "GU", "HK", "HN", "ID", "IL", "IN", "JM", "JP", "KE", "KH", "KR", "LA", "MH",
		"MM", "MO", "MT", "MX", "MZ", "NI", "NP", "PA", "PE", "PH", "PK", "PR", "PT", "PY",
		"SA", "SG", "SV", "TH", "TT", "TW", "UM", "US", "VE", "VI", "WS", "YE", "ZA", "ZW",
	}
)

var firstDay = func() map[string]time.Weekday {
	m := make(map[string]time.Weekday)
	for _, r := range fridayRegions {
		m[r] = time.Friday
	}
	for _, r := range saturdayRegions {
		m[r] = time.Saturday
	}
	for _, r := range sundayRegions {
		m[r] = time.Sunday
	}
	return m
}()

// LocaleWeekStart returns the first day of the week for the locale in
// LC_ALL, LC_TIME or LANG, in that order.
func LocaleWeekStart() time.Weekday {
	return WeekStartFor(localeFromEnv())
}

func localeFromEnv() string {
	for _, name := range []string{"LC_ALL", "LC_TIME", "LANG"} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// WeekStartFor maps a POSIX locale name such as "en_US.UTF-8" or a BCP
// 47 tag to its first weekday. When only a language is given the most
// likely region is assumed.
func WeekStartFor(locale string) time.Weekday {
	switch locale {
	case "", "C", "POSIX":
		return time.Monday
	}
	tag, err := language.Parse(normalizeLocale(locale))
	if err != nil {
		return time.Monday
	}
	region, conf := tag.Region()
	if conf == language.No {
		return time.Monday
	}
	if wd, ok := firstDay[region.String()]; ok {
		return wd
	}
	return time.Monday
}

func normalizeLocale(locale string) string {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ReplaceAll(locale, "_", "-")
}
