package scraper

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lineboard/ouservice/internal/models"
)

// Page is a fetched source page handed to a parser.
type Page struct {
	URL  string
	HTML string
}

// LineParser extracts over/under records from a page. The deterministic
// PatternParser handles schedule tables; the ModelParser is the fallback
// for pages whose layout the patterns don't cover. Both are constrained to
// the team names the caller supplied.
type LineParser interface {
	Parse(ctx context.Context, page Page, matcher *TeamMatcher) ([]models.OddsRecord, error)
}

// ouPattern matches the "O/U: 45.5" token schedule pages print next to a
// fixture.
var ouPattern = regexp.MustCompile(`O/U[:\s]+(\d+(?:\.\d+)?)`)

// PatternParser extracts over/under lines from schedule tables without any
// external calls. It walks table rows, pulls the over/under token from the
// row text, and resolves the row's team cells against the known teams.
type PatternParser struct{}

// NewPatternParser creates the deterministic parser.
func NewPatternParser() *PatternParser {
	return &PatternParser{}
}

// Parse implements LineParser.
func (p *PatternParser) Parse(_ context.Context, page Page, matcher *TeamMatcher) ([]models.OddsRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil {
		return nil, err
	}

	var records []models.OddsRecord
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		rowText := row.Text()
		ou := ouPattern.FindStringSubmatch(rowText)
		if ou == nil {
			return
		}
		line, err := strconv.ParseFloat(ou[1], 64)
		if err != nil || line <= 0 {
			return
		}

		away, home, league, ok := p.resolveTeams(row, matcher)
		if !ok {
			return
		}

		// Schedule tables put the date in the table title above the rows.
		date := strings.TrimSpace(row.Closest(".ScheduleTables").Find(".Table__Title").First().Text())

		records = append(records, models.OddsRecord{
			League:       league,
			Participants: [2]string{away, home},
			Line:         line,
			Date:         date,
			Time:         p.gameTime(row),
			Source:       page.URL,
		})
	})

	if len(records) == 0 {
		return nil, errors.New("no over/under lines matched")
	}
	return records, nil
}

// resolveTeams extracts the two team cells of a row and resolves both
// against the same league. Rows whose teams cannot both be resolved are
// skipped.
func (p *PatternParser) resolveTeams(row *goquery.Selection, matcher *TeamMatcher) (away, home, league string, ok bool) {
	var cells []string
	row.Find(".Table__Team").Each(func(_ int, cell *goquery.Selection) {
		if text := strings.Join(strings.Fields(cell.Text()), " "); text != "" {
			cells = append(cells, text)
		}
	})
	if len(cells) < 2 {
		// Generic tables: fall back to the first two cells naming known teams.
		row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
			text := strings.Join(strings.Fields(cell.Text()), " ")
			if text == "" {
				return true
			}
			if _, _, matched := matcher.MatchAnyLeague(text); matched {
				cells = append(cells, text)
			}
			return len(cells) < 2
		})
	}
	if len(cells) < 2 {
		return "", "", "", false
	}

	awayLeague, awayName, okA := matcher.MatchAnyLeague(cells[0])
	if !okA {
		return "", "", "", false
	}
	homeName, _, okH := matcher.Match(awayLeague, cells[1])
	if !okH {
		return "", "", "", false
	}
	return awayName, homeName, awayLeague, true
}

// gameTime pulls the scheduled time cell when one is present.
func (p *PatternParser) gameTime(row *goquery.Selection) string {
	var out string
	row.Find("td").EachWithBreak(func(_ int, cell *goquery.Selection) bool {
		class, _ := cell.Attr("class")
		lc := strings.ToLower(class)
		if strings.Contains(lc, "date__col") || strings.Contains(lc, "time") {
			out = strings.TrimSpace(cell.Text())
			return false
		}
		return true
	})
	return out
}
