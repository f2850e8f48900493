package scraper

import (
	"regexp"
	"strings"
)

var (
	newlineRuns    = regexp.MustCompile(`\n+`)
	whitespaceRuns = regexp.MustCompile(`[\s\p{Zs}]+`)
	numericCites   = regexp.MustCompile(`\[\d+\]`)
	inlineMarkers  = regexp.MustCompile(`\[(?:citation needed|clarification needed|when\?|who\?|edit)\]`)
	coordinates    = regexp.MustCompile(`Coordinates:\s*\d+°[^.]*\.`)
	repeatedSpaces = regexp.MustCompile(`[\s\p{Zs}]{2,}`)
)

// Normalize приводит извлечённый текст к одной строке без сносок и служебных пометок.
// Порядок шагов фиксирован. Удаление пометок повторяется до неподвижной точки:
// вырезание "[1]" из "[[1]2]" даёт новую пометку "[2]", и без повтора функция
// не была бы идемпотентной.
func Normalize(text string) string {
	text = newlineRuns.ReplaceAllString(text, "\n")
	text = whitespaceRuns.ReplaceAllString(text, " ")

	for {
		next := numericCites.ReplaceAllString(text, "")
		next = inlineMarkers.ReplaceAllString(next, "")
		next = coordinates.ReplaceAllString(next, "")
		next = repeatedSpaces.ReplaceAllString(next, " ")
		if next == text {
			break
		}
		text = next
	}

	return strings.TrimSpace(text)
}
