package entities

import (
	"regexp"
	"strings"
)

// UnknownPeriod is the period of a date that carries no year.
const UnknownPeriod = "unknown"

var (
	isoMonth = regexp.MustCompile(`\b(20\d{2})-(0[1-9]|1[0-2])\b`)
	year     = regexp.MustCompile(`20\d{2}`)
)

// Egyptian month names first, then the Levantine ones.
var arabicMonths = []struct {
	name  string
	month string
}{
	{"يناير", "01"}, {"فبراير", "02"}, {"مارس", "03"}, {"أبريل", "04"},
	{"مايو", "05"}, {"يونيو", "06"}, {"يوليو", "07"}, {"أغسطس", "08"},
	{"سبتمبر", "09"}, {"أكتوبر", "10"}, {"نوفمبر", "11"}, {"ديسمبر", "12"},
	{"كانون الثاني", "01"}, {"شباط", "02"}, {"آذار", "03"}, {"نيسان", "04"},
	{"أيار", "05"}, {"حزيران", "06"}, {"تموز", "07"}, {"آب", "08"},
	{"أيلول", "09"}, {"تشرين الأول", "10"}, {"تشرين الثاني", "11"}, {"كانون الأول", "12"},
}

// ParsePeriod maps an article date to its YYYY-MM period. ISO dates keep
// their month; Arabic dates take the first 20xx year and the month named in
// the text, January when none is. A date without a year is UnknownPeriod.
func ParsePeriod(date string) string {
	date = strings.TrimSpace(date)
	if date == "" {
		return UnknownPeriod
	}

	if m := isoMonth.FindStringSubmatch(date); m != nil {
		return m[1] + "-" + m[2]
	}

	y := year.FindString(date)
	if y == "" {
		return UnknownPeriod
	}

	month := "01"
	for _, m := range arabicMonths {
		if strings.Contains(date, m.name) {
			month = m.month
			break
		}
	}
	return y + "-" + month
}
