// Package discovery turns a pending municipality job into candidate
// source rows: generate search queries, call Serper, filter obvious
// noise, canonicalize URLs, validate each candidate (heuristic then
// LLM), and upsert the ones that pass.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/civic-signal/eventscraper/pkg/ai"
	"github.com/civic-signal/eventscraper/pkg/fetcher"
	"github.com/civic-signal/eventscraper/pkg/models"
	"github.com/civic-signal/eventscraper/pkg/store"
)

// enableThreshold is the LLM validation confidence above which a newly
// discovered source is enabled immediately rather than left disabled
// for manual review.
const enableThreshold = 90

var queryTemplates = []string{
	"uitagenda %s",
	"evenementen agenda %s",
	"what's on %s events",
	"%s community calendar",
}

// noiseDomains are hosts that are never agenda pages, filtered out of
// search results before any fetch is attempted.
var noiseDomains = []string{
	"facebook.com", "instagram.com", "twitter.com", "x.com", "tiktok.com",
	"eventbrite.com", "ticketmaster.com", "meetup.com", "linkedin.com",
	"youtube.com", "pinterest.com",
}

var agendaTokens = regexp.MustCompile(`(?i)agenda|evenement|event|kalender|calendar|program(?:ma)?`)
var dateTokenPattern = regexp.MustCompile(`(?i)\b(januari|februari|maart|april|mei|juni|juli|augustus|september|oktober|november|december|jan|feb|mar|apr|jun|jul|aug|sep|oct|nov|dec)\b|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}`)

// Store is the subset of pkg/store.Store the discovery worker depends on.
type Store interface {
	NextPendingDiscoveryJob(ctx context.Context, batchID string) (*models.DiscoveryJob, error)
	PendingDiscoveryJobCount(ctx context.Context) (int, error)
	CompleteDiscoveryJob(ctx context.Context, id uuid.UUID, sourcesFound, sourcesAdded int) error
	FailDiscoveryJob(ctx context.Context, id uuid.UUID) error
	UpsertSource(ctx context.Context, src models.Source) (uuid.UUID, error)
}

// SearchResult is one organic hit from the search API.
type SearchResult struct {
	URL   string
	Title string
}

// Searcher runs a web search query and returns candidate result URLs.
type Searcher interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// Validator is the LLM capability that judges a fetched candidate page,
// implemented by *ai.GeminiClient.
type Validator interface {
	ValidateCandidate(ctx context.Context, url, pageText string) (*ai.ValidationResult, error)
}

// Worker runs one discovery job per invocation and self-chains.
type Worker struct {
	Store     Store
	Searcher  Searcher
	Fetcher   fetcher.Fetcher
	Validator Validator
}

// Result reports one discovery invocation's outcome.
type Result struct {
	Job                  *models.DiscoveryJob
	SourcesFound         int
	SourcesAdded         int
	PendingJobsRemaining int
}

// ProcessNext claims and processes the next pending discovery job
// (optionally scoped to a batch). Returns (nil, nil) when no job is
// pending.
func (w *Worker) ProcessNext(ctx context.Context, batchID string) (*Result, error) {
	job, err := w.Store.NextPendingDiscoveryJob(ctx, batchID)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending discovery job: %w", err)
	}

	found, added := w.runJob(ctx, job)

	if err := w.Store.CompleteDiscoveryJob(ctx, job.ID, found, added); err != nil {
		slog.Warn("failed to mark discovery job completed", "job_id", job.ID, "error", err)
	}

	pending, err := w.Store.PendingDiscoveryJobCount(ctx)
	if err != nil {
		slog.Warn("failed to read pending discovery job count", "error", err)
	}

	job.SourcesFound = found
	job.SourcesAdded = added
	return &Result{Job: job, SourcesFound: found, SourcesAdded: added, PendingJobsRemaining: pending}, nil
}

func (w *Worker) runJob(ctx context.Context, job *models.DiscoveryJob) (found, added int) {
	candidates := w.searchCandidates(ctx, job.Municipality)
	found = len(candidates)

	for _, candidateURL := range candidates {
		validation := w.validate(ctx, candidateURL)
		if validation == nil || !validation.IsValid {
			continue
		}

		name := validation.SuggestedName
		if name == "" {
			name = hostnameOf(candidateURL)
		}
		src := models.Source{
			Name:          name,
			URL:           candidateURL,
			Tier:          models.TierGeneral,
			Enabled:       validation.Confidence > enableThreshold,
			FetchStrategy: models.FetchStatic,
			LocationName:  job.Municipality,
			DefaultLat:    job.Lat,
			DefaultLng:    job.Lng,
		}
		if _, err := w.Store.UpsertSource(ctx, src); err != nil {
			slog.Warn("failed to upsert discovered source", "url", candidateURL, "error", err)
			continue
		}
		added++
	}
	return found, added
}

func hostnameOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

// searchCandidates runs every query template through the searcher,
// filters noise domains, canonicalizes, and dedupes.
func (w *Worker) searchCandidates(ctx context.Context, municipality string) []string {
	seen := map[string]bool{}
	var candidates []string

	for _, tmpl := range queryTemplates {
		query := fmt.Sprintf(tmpl, municipality)
		results, err := w.Searcher.Search(ctx, query)
		if err != nil {
			slog.Warn("discovery search failed", "query", query, "error", err)
			continue
		}
		for _, r := range results {
			canon := canonicalizeURL(r.URL)
			if canon == "" || isNoiseDomain(canon) || seen[canon] {
				continue
			}
			seen[canon] = true
			candidates = append(candidates, canon)
		}
	}
	return candidates
}

// canonicalizeURL strips a trailing slash and fragment.
func canonicalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u.String()
}

func isNoiseDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	for _, noise := range noiseDomains {
		if host == noise || strings.HasSuffix(host, "."+noise) {
			return true
		}
	}
	return false
}

// validate fetches the candidate page and runs the heuristic check
// (agenda/date tokens present) before spending an LLM call; the LLM call
// only happens for candidates that clear the heuristic gate.
func (w *Worker) validate(ctx context.Context, candidateURL string) *ai.ValidationResult {
	page, err := w.Fetcher.FetchPage(ctx, candidateURL, nil, 0)
	if err != nil {
		return nil
	}
	if !agendaTokens.MatchString(page.HTML) || !dateTokenPattern.MatchString(page.HTML) {
		return nil
	}

	result, err := w.Validator.ValidateCandidate(ctx, candidateURL, page.HTML)
	if err != nil {
		return nil
	}
	return result
}
