package gcal

// Entry is the outbound representation of one event, shaped after the
// classic calendar entry: a title, a content body, where and when
// elements, and an optional recurrence block that replaces the when
// elements.
type Entry struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Where      []Where `json:"where,omitempty"`
	When       []When  `json:"when,omitempty"`
	Recurrence string  `json:"recurrence,omitempty"`
}

// Where is one location element.
type Where struct {
	ValueString string `json:"valueString"`
}

// When is one occurrence window. Times use the upload layout
// (2006-01-02T15:04:05.000Z).
type When struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	AllDay    bool   `json:"allDay,omitempty"`
}
