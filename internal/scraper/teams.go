package scraper

import (
	"strings"

	"github.com/lineboard/ouservice/internal/models"
)

// matchThreshold is the minimum bigram similarity accepted when no exact,
// substring or alternate-name match exists. Mirrors the cutoff the service
// has always used for schedule-page names.
const matchThreshold = 0.8

// TeamMatcher resolves scraped team names against the caller-supplied
// leagues, so the scraper can never emit a team the caller does not know.
// Matching is tiered: exact name or provider name, then substring, then
// alternate names, then bigram similarity as a last resort.
type TeamMatcher struct {
	leagues map[string]models.LeagueTeams
}

// NewTeamMatcher builds a matcher over the supplied leagues.
func NewTeamMatcher(leagues map[string]models.LeagueTeams) *TeamMatcher {
	return &TeamMatcher{leagues: leagues}
}

// Leagues returns the league names the matcher knows, for prompt building.
func (m *TeamMatcher) Leagues() []string {
	names := make([]string, 0, len(m.leagues))
	for name := range m.leagues {
		names = append(names, name)
	}
	return names
}

// TeamNames returns the canonical team names for a league.
func (m *TeamMatcher) TeamNames(league string) []string {
	lt, ok := m.leagues[league]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(lt.Teams))
	for _, t := range lt.Teams {
		names = append(names, t.Name)
	}
	return names
}

// Match resolves a scraped name within one league. The returned name is the
// canonical team name; ok is false when nothing clears the threshold.
func (m *TeamMatcher) Match(league, scraped string) (name string, confidence float64, ok bool) {
	lt, found := m.leagues[league]
	if !found {
		return "", 0, false
	}
	scraped = strings.Join(strings.Fields(scraped), " ")
	if scraped == "" {
		return "", 0, false
	}

	// Exact match on canonical or provider name.
	for _, t := range lt.Teams {
		if t.Name == scraped || (t.ESPNName != "" && t.ESPNName == scraped) {
			return t.Name, 1.0, true
		}
	}

	// Substring match either direction. Short strings are excluded so e.g.
	// "United" cannot claim every club with "United" in its name.
	lower := strings.ToLower(scraped)
	for _, t := range lt.Teams {
		for _, candidate := range []string{t.Name, t.ESPNName} {
			if len(candidate) <= 3 || len(scraped) <= 3 {
				continue
			}
			cl := strings.ToLower(candidate)
			if strings.Contains(cl, lower) || strings.Contains(lower, cl) {
				return t.Name, 0.95, true
			}
		}
	}

	// Alternate names.
	for _, t := range lt.Teams {
		for _, alt := range t.AlternateNames {
			if len(alt) <= 3 || len(scraped) <= 3 {
				continue
			}
			al := strings.ToLower(alt)
			if strings.Contains(al, lower) || strings.Contains(lower, al) {
				return t.Name, 0.9, true
			}
		}
	}

	// Bigram similarity over every known alias.
	var bestTeam string
	var bestScore float64
	for _, t := range lt.Teams {
		aliases := append([]string{t.Name, t.ShortName, t.ESPNName}, t.AlternateNames...)
		for _, alias := range aliases {
			if alias == "" {
				continue
			}
			if score := bigramSimilarity(lower, strings.ToLower(alias)); score > bestScore {
				bestScore = score
				bestTeam = t.Name
			}
		}
	}
	if bestScore >= matchThreshold {
		return bestTeam, bestScore, true
	}
	return "", 0, false
}

// MatchAnyLeague resolves a scraped name across every supplied league,
// returning the league it matched in.
func (m *TeamMatcher) MatchAnyLeague(scraped string) (league, name string, ok bool) {
	var bestLeague, bestName string
	var bestScore float64
	for lg := range m.leagues {
		if n, score, matched := m.Match(lg, scraped); matched && score > bestScore {
			bestLeague, bestName, bestScore = lg, n, score
		}
	}
	if bestScore > 0 {
		return bestLeague, bestName, true
	}
	return "", "", false
}

// bigramSimilarity is the Sørensen–Dice coefficient over character bigrams.
// Stands in for the sequence-ratio matching the original flow used; values
// are in [0,1] with 1 for identical strings.
func bigramSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	counts := make(map[string]int)
	for i := 0; i+2 <= len(a); i++ {
		counts[a[i:i+2]]++
	}
	overlap := 0
	for i := 0; i+2 <= len(b); i++ {
		bg := b[i : i+2]
		if counts[bg] > 0 {
			counts[bg]--
			overlap++
		}
	}
	return 2.0 * float64(overlap) / float64(len(a)+len(b)-2)
}
