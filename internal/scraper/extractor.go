package scraper

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	apperrors "github.com/saiteja7065/AI-Wiki-Quiz-Generator/internal/pkg/errors"
)

const (
	// MinTextLength - минимальная длина очищенного текста (в символах)
	MinTextLength = 100

	// UnknownTitle используется, когда заголовок не найден
	UnknownTitle = "Unknown Article"

	// maxTableRows: таблицы длиннее считаются таблицами данных и удаляются
	maxTableRows = 20
)

var (
	titleSelectors = []string{
		"h1.firstHeading",
		"h1#firstHeading",
		".mw-page-title-main",
		"h1",
	}

	contentSelectors = []string{
		"#mw-content-text .mw-parser-output",
		"#mw-content-text",
		".mw-parser-output",
		"#content .mw-body-content",
	}

	// Элементы, не относящиеся к тексту статьи
	strippedSelectors = strings.Join([]string{
		"sup",
		".reference",
		".references",
		".reflist",
		".navbox",
		".vertical-navbox",
		".infobox",
		".hatnote",
		".dablink",
		".metadata",
		".printfooter",
		".catlinks",
		"#toc",
		".toc",
		".sidebar",
		"script",
		"style",
		".mw-editsection",
		".thumbcaption .magnify",
	}, ", ")

	disambiguationSuffix = regexp.MustCompile(`\s*\([^)]*\)$`)
	wikipediaTitleSuffix = regexp.MustCompile(`\s*-\s*Wikipedia.*$`)
)

// Extractor превращает HTML статьи в чистый текст и заголовок
type Extractor struct {
	minLength int
}

// NewExtractor создает экстрактор с порогом MinTextLength
func NewExtractor() *Extractor {
	return &Extractor{minLength: MinTextLength}
}

// Extract разбирает HTML, находит заголовок и основной контент, вырезает
// служебные блоки и нормализует текст. Ошибки оборачиваются в ErrExtraction.
func (e *Extractor) Extract(rawHTML []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(rawHTML))
	if err != nil {
		return "", "", fmt.Errorf("%w: parse html: %w", apperrors.ErrExtraction, err)
	}

	title := extractTitle(doc)

	region := findContent(doc)
	if region == nil {
		return "", "", fmt.Errorf("%w: could not find main content area", apperrors.ErrExtraction)
	}

	region.Find(strippedSelectors).Remove()
	region.Find("table").Each(func(_ int, table *goquery.Selection) {
		if table.Find("table").Length() > 0 || table.Find("tr").Length() > maxTableRows {
			table.Remove()
		}
	})

	text := Normalize(region.Text())
	if n := utf8.RuneCountInString(text); n < e.minLength {
		return "", "", fmt.Errorf("%w: article content is too short (%d characters, need %d)",
			apperrors.ErrExtraction, n, e.minLength)
	}

	return text, title, nil
}

// extractTitle перебирает селекторы заголовка, затем <title>, затем UnknownTitle
func extractTitle(doc *goquery.Document) string {
	for _, sel := range titleSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if title := strings.TrimSpace(disambiguationSuffix.ReplaceAllString(text, "")); title != "" {
			return title
		}
	}

	if text := strings.TrimSpace(doc.Find("title").First().Text()); text != "" {
		if title := strings.TrimSpace(wikipediaTitleSuffix.ReplaceAllString(text, "")); title != "" {
			return title
		}
	}

	return UnknownTitle
}

// findContent возвращает первую найденную область контента или body.
// Пустой body означает, что контента нет.
func findContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range contentSelectors {
		if region := doc.Find(sel).First(); region.Length() > 0 {
			return region
		}
	}

	body := doc.Find("body").First()
	if body.Length() == 0 || strings.TrimSpace(body.Text()) == "" {
		return nil
	}
	return body
}
