package feed

import "time"

// Target is one handle's derived feed URL and display title.
type Target struct {
	Handle string // without the leading "@"
	URL    string
	Title  string // display title, e.g. "@handle"
}

// Info holds the top-level metadata of a parsed feed document.
type Info struct {
	Title string
}

// Entry is a single item inside a parsed feed.
type Entry struct {
	Title     string
	Link      string
	Content   string
	Published *time.Time
	Updated   *time.Time
}

// Parsed is the result of one feed retrieval. Feed is nil when no document
// could be parsed at all; Status is 0 when no HTTP status was observed.
type Parsed struct {
	Feed       *Info
	Entries    []Entry
	Status     int
	Malformed  bool
	ParseError string
}

// Post is the normalized extraction unit handed to the export stage.
type Post struct {
	Source    string
	Content   string
	URL       string
	Date      string
	Timestamp time.Time
}

// Failure records why a single handle's feed could not be used.
type Failure struct {
	Handle string
	Reason string
}

// RunResult aggregates one whole batch run.
type RunResult struct {
	Posts      []Post
	Successful int
	Failed     []Failure
}
