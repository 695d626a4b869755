/*
worklog.go - Best-effort normalization of upstream worklogs

PURPOSE:
  Worklogs come from several versions of the time-tracking API and disagree
  on field names and types. Instead of a strict schema, each raw object is
  decoded into a map and the fields the reconciler needs are extracted with
  fallbacks. Nothing here returns an error: a field that cannot be read
  degrades to a default.

DATE FIELD (first present of startDate, date, dateStarted, started, start_date):
  - number or numeric string <= 1e10   -> epoch seconds
  - number or numeric string  > 1e10   -> epoch milliseconds (/1000)
  - ISO datetime                       -> truncated to its calendar date
  - ISO date                           -> as is
  - anything else                      -> raw string kept as DateKey, HasDate=false

IDENTITY (first match wins):
  1. any email-like value (contains "@")
  2. an account id
  3. a display name
  4. "Unknown"

SEE ALSO:
  - reconcile.go: Consumes normalized worklogs
  - tracker/tempo.go: Produces RawWorklog
*/
package capacity

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawWorklog is one upstream worklog object as decoded JSON.
type RawWorklog map[string]any

// UnknownSubject is the identity used when a worklog names nobody.
const UnknownSubject SubjectID = "Unknown"

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
const epochMillisThreshold = 1e10

// Worklog is a normalized worklog entry.
type Worklog struct {
	SubjectID        SubjectID
	SubjectName      string
	AccountID        string
	DateKey          string // YYYY-MM-DD when HasDate, otherwise the raw upstream value
	Date             Date
	HasDate          bool
	ProjectKey       string
	IssueKey         string
	TimeSpentSeconds int64
}

// AccountLookup maps an opaque account id to a known email and display name.
type AccountLookup func(accountID string) (email, displayName string, ok bool)

var (
	dateFields      = []string{"startDate", "date", "dateStarted", "started", "start_date"}
	timeSpentFields = []string{"timeSpentSeconds", "time_spent_seconds", "timeSpentInSeconds"}
	personObjects   = []string{"author", "worker", "user"}
	emailFields     = []string{"emailAddress", "email", "user_email", "userEmail"}
	accountFields   = []string{"accountId", "account_id", "authorAccountId"}
	nameFields      = []string{"displayName", "display_name", "name"}

	datetimeLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	}
)

// DecodeRawWorklogs decodes a JSON array of worklog objects, keeping numbers
// as json.Number so epoch milliseconds survive intact.
func DecodeRawWorklogs(data []byte) ([]RawWorklog, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out []RawWorklog
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// NormalizeWorklog extracts date, identity, project and duration from raw.
// lookup may be nil.
func NormalizeWorklog(raw RawWorklog, lookup AccountLookup) Worklog {
	w := Worklog{TimeSpentSeconds: timeSpent(raw)}

	for _, f := range dateFields {
		if v, ok := raw[f]; ok && v != nil {
			w.DateKey, w.Date, w.HasDate = NormalizeDate(v)
			break
		}
	}

	w.SubjectID, w.SubjectName, w.AccountID = identity(raw, lookup)
	w.IssueKey, w.ProjectKey = issueAndProject(raw)
	return w
}

// NormalizeWorklogs normalizes a batch.
func NormalizeWorklogs(raws []RawWorklog, lookup AccountLookup) []Worklog {
	out := make([]Worklog, len(raws))
	for i, r := range raws {
		out[i] = NormalizeWorklog(r, lookup)
	}
	return out
}

// NormalizeDate turns an upstream date value into a calendar day. When the
// value cannot be read the raw text is returned with ok=false.
func NormalizeDate(v any) (key string, d Date, ok bool) {
	switch val := v.(type) {
	case json.Number:
		if f, err := val.Float64(); err == nil {
			d = fromEpoch(f)
			return d.String(), d, true
		}
		return val.String(), Date{}, false
	case float64:
		d = fromEpoch(val)
		return d.String(), d, true
	case int64:
		d = fromEpoch(float64(val))
		return d.String(), d, true
	case int:
		d = fromEpoch(float64(val))
		return d.String(), d, true
	case string:
		return normalizeDateString(val)
	default:
		return "", Date{}, false
	}
}

func normalizeDateString(s string) (string, Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", Date{}, false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !strings.ContainsAny(s, "-:") {
		d := fromEpoch(f)
		return d.String(), d, true
	}
	if d, err := ParseDate(s); err == nil {
		return d.String(), d, true
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d := DateOf(t)
			return d.String(), d, true
		}
	}
	// Unknown datetime suffix; the leading calendar date is still usable.
	if len(s) > len(DateLayout) && (s[len(DateLayout)] == 'T' || s[len(DateLayout)] == ' ') {
		if d, err := ParseDate(s[:len(DateLayout)]); err == nil {
			return d.String(), d, true
		}
	}
	return s, Date{}, false
}

func fromEpoch(v float64) Date {
	if v > epochMillisThreshold {
		v /= 1000
	}
	sec, frac := math.Modf(v)
	return DateOf(time.Unix(int64(sec), int64(frac*1e9)).UTC())
}

func timeSpent(raw RawWorklog) int64 {
	for _, f := range timeSpentFields {
		if n, ok := asFloat(raw[f]); ok {
			return int64(math.Round(n))
		}
	}
	return 0
}

func identity(raw RawWorklog, lookup AccountLookup) (SubjectID, string, string) {
	var emails, accounts, names []string
	collect := func(m map[string]any) {
		for _, f := range emailFields {
			emails = appendString(emails, m[f])
		}
		for _, f := range accountFields {
			accounts = appendString(accounts, m[f])
		}
		for _, f := range nameFields {
			names = appendString(names, m[f])
		}
	}
	for _, obj := range personObjects {
		switch p := raw[obj].(type) {
		case map[string]any:
			collect(p)
		case string:
			// Older versions send the worker as a bare string: email or account id.
			if strings.Contains(p, "@") {
				emails = append(emails, p)
			} else if p != "" {
				accounts = append(accounts, p)
			}
		}
	}
	collect(raw)

	name := first(names)
	account := first(accounts)
	for _, candidate := range append(append([]string{}, emails...), accounts...) {
		if strings.Contains(candidate, "@") {
			return SubjectID(candidate), nameOr(name, candidate), account
		}
	}
	if account != "" {
		if lookup != nil {
			if email, display, ok := lookup(account); ok && email != "" {
				return SubjectID(email), nameOr(nameOr(name, display), email), account
			}
		}
		return SubjectID(account), nameOr(name, account), account
	}
	if name != "" {
		return SubjectID(name), name, ""
	}
	return UnknownSubject, string(UnknownSubject), ""
}

func issueAndProject(raw RawWorklog) (issueKey, projectKey string) {
	projectKey = asString(raw["projectKey"])
	if issue, ok := raw["issue"].(map[string]any); ok {
		issueKey = asString(issue["key"])
		if projectKey == "" {
			projectKey = asString(issue["projectKey"])
		}
		if projectKey == "" {
			if project, ok := issue["project"].(map[string]any); ok {
				projectKey = asString(project["key"])
			}
		}
	}
	if issueKey == "" {
		issueKey = asString(raw["issueKey"])
	}
	if projectKey == "" && issueKey != "" {
		if i := strings.LastIndex(issueKey, "-"); i > 0 {
			projectKey = issueKey[:i]
		}
	}
	return issueKey, projectKey
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	}
	return ""
}

func appendString(dst []string, v any) []string {
	if s := asString(v); s != "" {
		return append(dst, s)
	}
	return dst
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
