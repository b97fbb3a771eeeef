package capture

import (
	"context"
	"strings"
	"sync"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/UnknownOlympus/hermes/internal/resolver"
)

// ImportItem is the outcome for one imported address.
type ImportItem struct {
	Query    string            `json:"query"`
	Decision resolver.Decision `json:"decision"`
	Stop     *models.Stop      `json:"stop,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type importJob struct {
	index int
	query string
}

type importOutcome struct {
	candidates []models.AddressCandidate
	err        error
}

// Import resolves a list of typed addresses concurrently. Addresses with exactly one candidate are
// added as stops in input order; the rest are reported with their decision or error. Blank lines
// are skipped.
func (s *Service) Import(ctx context.Context, queries []string) []ImportItem {
	cleaned := make([]string, 0, len(queries))
	for _, query := range queries {
		if query = strings.TrimSpace(query); query != "" {
			cleaned = append(cleaned, query)
		}
	}
	if len(cleaned) == 0 {
		s.log.InfoContext(ctx, "Nothing to import.")
		return []ImportItem{}
	}

	s.log.InfoContext(
		ctx,
		"Found addresses to import. Starting worker pool.",
		"jobs", len(cleaned),
		"num_workers", s.numWorkers,
	)

	bias := s.bias(StopKey())
	outcomes := make([]importOutcome, len(cleaned))
	jobs := make(chan importJob, len(cleaned))
	var wgr sync.WaitGroup

	for i := 1; i <= min(s.numWorkers, len(cleaned)); i++ {
		wgr.Add(1)
		go s.importWorker(ctx, i, &wgr, jobs, bias, outcomes)
	}

	for idx, query := range cleaned {
		jobs <- importJob{index: idx, query: query}
	}
	close(jobs)

	wgr.Wait()

	items := make([]ImportItem, len(cleaned))
	for idx, query := range cleaned {
		item := ImportItem{Query: query}
		outcome := outcomes[idx]
		if outcome.err != nil {
			item.Error = outcome.err.Error()
			item.Decision = resolver.Disambiguate(nil, query)
			items[idx] = item
			continue
		}

		item.Decision = resolver.Disambiguate(outcome.candidates, query)
		if item.Decision.Kind == resolver.AutoCommit {
			stop := s.store.AddStop(ctx, *item.Decision.Candidate)
			item.Stop = &stop
		}
		items[idx] = item
	}

	s.log.InfoContext(ctx, "Import batch finished", "jobs", len(cleaned))

	return items
}

// importWorker resolves jobs until the channel is drained. Each job writes only its own slot.
func (s *Service) importWorker(
	ctx context.Context,
	idx int,
	wg *sync.WaitGroup,
	jobs <-chan importJob,
	bias resolver.Bias,
	outcomes []importOutcome,
) {
	defer wg.Done()
	for job := range jobs {
		s.metrics.ActiveWorkers.Inc()
		s.log.DebugContext(ctx, "Resolving imported address", "worker", idx, "query", job.query)

		candidates, err := s.resolver.Resolve(ctx, job.query, bias)
		if err != nil {
			s.log.ErrorContext(ctx, "Failed to resolve imported address", "worker", idx, "query", job.query, "error", err)
		}
		outcomes[job.index] = importOutcome{candidates: candidates, err: err}

		s.metrics.ActiveWorkers.Dec()
	}
}
