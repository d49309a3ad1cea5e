package sportsdb

// Wire types for TheSportsDB v1 JSON API. Numeric fields arrive as strings
// (or null), so everything is kept as strings here and converted at the edge.

// WireLeague is a league object as returned by lookupleague.php.
type WireLeague struct {
	ID            string `json:"idLeague"`
	Name          string `json:"strLeague"`
	AlternateName string `json:"strLeagueAlternate"`
	Sport         string `json:"strSport"`
	Country       string `json:"strCountry"`
	Badge         string `json:"strBadge"`
}

// WireTeam is a team object as returned by lookup_all_teams.php.
type WireTeam struct {
	ID             string `json:"idTeam"`
	Name           string `json:"strTeam"`
	AlternateNames string `json:"strTeamAlternate"` // comma-separated
	ShortName      string `json:"strTeamShort"`
	Badge          string `json:"strBadge"`
}

// WireEvent is a fixture object as returned by eventsday.php and
// lookupevent.php.
type WireEvent struct {
	ID        string  `json:"idEvent"`
	Sport     string  `json:"strSport"`
	League    string  `json:"strLeague"`
	HomeTeam  string  `json:"strHomeTeam"`
	AwayTeam  string  `json:"strAwayTeam"`
	Name      string  `json:"strEvent"`
	Timestamp string  `json:"strTimestamp"`
	Venue     string  `json:"strVenue"`
	Status    string  `json:"strStatus"`
	Postponed string  `json:"strPostponed"`
	Cancelled string  `json:"strCancelled"`
	HomeScore *string `json:"intHomeScore"`
	AwayScore *string `json:"intAwayScore"`
}

type leaguesResponse struct {
	Leagues []WireLeague `json:"leagues"`
}

type teamsResponse struct {
	Teams []WireTeam `json:"teams"`
}

type eventsResponse struct {
	Events []WireEvent `json:"events"`
}
