package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/warp/capacity-engine/capacity"
)

// usersPageSize is the page size of the user search endpoint.
const usersPageSize = 50

// =============================================================================
// JIRA CLIENT
// =============================================================================

type JiraConfig struct {
	BaseURL  string
	Email    string
	APIToken string
	Timeout  time.Duration
}

// Jira reads the project and user directory.
type Jira struct {
	cfg      JiraConfig
	client   *http.Client
	log      logrus.FieldLogger
	observer Observer
	now      func() time.Time
}

func NewJira(cfg JiraConfig, client *http.Client, log logrus.FieldLogger, observer Observer) *Jira {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if client == nil {
		client = &http.Client{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Jira{cfg: cfg, client: client, log: log.WithField("component", "jira"), observer: observer, now: time.Now}
}

// Configured reports whether URL, email and token are all set.
func (j *Jira) Configured() bool {
	return j.cfg.BaseURL != "" && j.cfg.Email != "" && j.cfg.APIToken != ""
}

type jiraProject struct {
	Key            string            `json:"key"`
	Name           string            `json:"name"`
	Description    json.RawMessage   `json:"description"`
	ProjectTypeKey string            `json:"projectTypeKey"`
	Lead           *jiraUser         `json:"lead"`
	AvatarURLs     map[string]string `json:"avatarUrls"`
}

type jiraUser struct {
	AccountID    string            `json:"accountId"`
	EmailAddress string            `json:"emailAddress"`
	DisplayName  string            `json:"displayName"`
	AvatarURLs   map[string]string `json:"avatarUrls"`
	Active       *bool             `json:"active"`
}

// Projects returns every project visible to the configured account.
func (j *Jira) Projects(ctx context.Context) ([]capacity.Project, error) {
	if !j.Configured() {
		return nil, capacity.NotConfigured("jira")
	}

	var raw []jiraProject
	if err := j.get(ctx, "/rest/api/3/project", url.Values{"expand": {"description,lead"}}, &raw); err != nil {
		return nil, err
	}

	synced := j.now().UTC()
	projects := make([]capacity.Project, 0, len(raw))
	for _, p := range raw {
		project := capacity.Project{
			Key:         p.Key,
			Name:        p.Name,
			Description: descriptionText(p.Description),
			ProjectType: p.ProjectTypeKey,
			AvatarURL:   p.AvatarURLs["48x48"],
			Active:      true,
			LastSynced:  synced,
		}
		if p.Lead != nil {
			project.LeadEmail = p.Lead.EmailAddress
		}
		projects = append(projects, project)
	}
	return projects, nil
}

// Users pages through the active users.
func (j *Jira) Users(ctx context.Context) ([]capacity.User, error) {
	if !j.Configured() {
		return nil, capacity.NotConfigured("jira")
	}

	synced := j.now().UTC()
	var users []capacity.User
	for startAt := 0; ; startAt += usersPageSize {
		params := url.Values{
			"startAt":    {strconv.Itoa(startAt)},
			"maxResults": {strconv.Itoa(usersPageSize)},
			"active":     {"true"},
		}
		var batch []jiraUser
		if err := j.get(ctx, "/rest/api/3/users/search", params, &batch); err != nil {
			return nil, err
		}
		for _, u := range batch {
			if u.Active != nil && !*u.Active {
				continue
			}
			users = append(users, capacity.User{
				AccountID:   u.AccountID,
				Email:       u.EmailAddress,
				DisplayName: u.DisplayName,
				AvatarURL:   u.AvatarURLs["48x48"],
				Active:      true,
				LastSynced:  synced,
			})
		}
		if len(batch) < usersPageSize {
			break
		}
	}

	j.log.WithField("users", len(users)).Debug("users fetched")
	return users, nil
}

func (j *Jira) get(ctx context.Context, path string, params url.Values, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		j.observer.ObserveUpstream("jira", path, outcome, time.Since(start))
	}()

	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(j.cfg.Email, j.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return j.upstream(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return j.upstream(path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return j.upstream(path, fmt.Errorf("status %d", resp.StatusCode))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return j.upstream(path, fmt.Errorf("decode body: %w", err))
	}
	return nil
}

func (j *Jira) upstream(path string, err error) error {
	j.log.WithError(err).WithField("endpoint", path).Warn("jira request failed")
	return &capacity.UpstreamError{
		Service:  "jira",
		Reason:   "request failed",
		Attempts: []error{fmt.Errorf("%s: %w", path, err)},
	}
}

// descriptionText flattens a project description. Newer API versions return
// an Atlassian document (nested nodes with "text" leaves) instead of a string.
func descriptionText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ""
	}
	var parts []string
	collectText(doc, &parts)
	return strings.Join(parts, " ")
}

func collectText(node any, parts *[]string) {
	switch n := node.(type) {
	case map[string]any:
		if text, ok := n["text"].(string); ok && text != "" {
			*parts = append(*parts, text)
		}
		collectText(n["content"], parts)
	case []any:
		for _, child := range n {
			collectText(child, parts)
		}
	}
}
