package fetcher

import "fmt"

// The source exposes four URL templates parameterized by date code
// (DDMMYYYY) and, for the per-race documents, meeting and race numbers.
// The response JSON shapes are the authoritative schema for extraction.

// ProgramURL returns the URL of the full program document for a date.
func (c *Client) ProgramURL(dateCode string) string {
	return fmt.Sprintf("%s/1/programme/%s", c.opts.BaseURL, dateCode)
}

// ParticipantsURL returns the URL of a race's participant list.
func (c *Client) ParticipantsURL(dateCode string, meeting, race int) string {
	return fmt.Sprintf("%s/61/programme/%s/R%d/C%d/participants", c.opts.BaseURL, dateCode, meeting, race)
}

// PerformancesURL returns the URL of the detailed career history of a
// race's runners.
func (c *Client) PerformancesURL(dateCode string, meeting, race int) string {
	return fmt.Sprintf("%s/61/programme/%s/R%d/C%d/performances-detaillees/pretty", c.opts.BaseURL, dateCode, meeting, race)
}

// ReportsURL returns the URL of a race's final betting reports.
func (c *Client) ReportsURL(dateCode string, meeting, race int) string {
	return fmt.Sprintf("%s/1/programme/%s/R%d/C%d/rapports-definitifs", c.opts.BaseURL, dateCode, meeting, race)
}
