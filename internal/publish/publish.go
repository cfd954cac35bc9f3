// Package publish files failing test reports as GitHub issues.
package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v60/github"
)

// Publisher creates or updates report issues in a repository.
type Publisher struct {
	client *gh.Client
}

// Option configures a Publisher.
type Option func(*Publisher) error

// WithBaseURL points the client at a GitHub Enterprise or test API URL.
func WithBaseURL(raw string) Option {
	return func(p *Publisher) error {
		if !strings.HasSuffix(raw, "/") {
			raw += "/"
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("parse base url: %w", err)
		}
		p.client.BaseURL = u
		return nil
	}
}

// New creates a Publisher authenticated with token.
func New(token string, opts ...Option) (*Publisher, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is required")
	}
	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
	}
	p := &Publisher{client: gh.NewClient(httpClient)}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// tokenTransport adds Bearer token auth to HTTP requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// IssueRef identifies the issue a report was published to.
type IssueRef struct {
	Repo      string
	Number    int
	URL       string
	Commented bool // the report was added to an existing open issue
}

// Issue is a report to publish.
type Issue struct {
	Title  string
	Body   string
	Labels []string
}

// Publish files the report in repo ("owner/name"). An open issue with the
// same title receives the report as a comment instead of a new issue.
func (p *Publisher) Publish(ctx context.Context, repo string, is Issue) (IssueRef, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return IssueRef{}, err
	}
	if is.Title == "" {
		return IssueRef{}, fmt.Errorf("publish: missing title")
	}

	existing, err := p.findOpen(ctx, owner, name, is)
	if err != nil {
		return IssueRef{}, err
	}
	if existing != nil {
		body := is.Body
		comment, _, err := p.client.Issues.CreateComment(ctx, owner, name, existing.GetNumber(), &gh.IssueComment{Body: &body})
		if err != nil {
			return IssueRef{}, fmt.Errorf("publish: comment on #%d: %w", existing.GetNumber(), err)
		}
		return IssueRef{Repo: repo, Number: existing.GetNumber(), URL: comment.GetHTMLURL(), Commented: true}, nil
	}

	req := &gh.IssueRequest{Title: &is.Title}
	if is.Body != "" {
		req.Body = &is.Body
	}
	if len(is.Labels) > 0 {
		labels := append([]string(nil), is.Labels...)
		req.Labels = &labels
	}
	issue, _, err := p.client.Issues.Create(ctx, owner, name, req)
	if err != nil {
		return IssueRef{}, fmt.Errorf("publish: create issue: %w", err)
	}
	return IssueRef{Repo: repo, Number: issue.GetNumber(), URL: issue.GetHTMLURL()}, nil
}

func (p *Publisher) findOpen(ctx context.Context, owner, name string, is Issue) (*gh.Issue, error) {
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		Labels:      is.Labels,
		ListOptions: gh.ListOptions{PerPage: 100},
	}
	for {
		issues, resp, err := p.client.Issues.ListByRepo(ctx, owner, name, opts)
		if err != nil {
			return nil, fmt.Errorf("publish: list issues: %w", err)
		}
		for _, issue := range issues {
			if !issue.IsPullRequest() && issue.GetTitle() == is.Title {
				return issue, nil
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return nil, nil
		}
		opts.Page = resp.NextPage
	}
}

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repo %q: expected owner/name", repo)
	}
	return owner, name, nil
}
