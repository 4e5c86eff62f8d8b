package content

import (
	"context"
	"sync"

	"github.com/UltimateServices/Dumpsters-CRM/internal/core"
	"github.com/UltimateServices/Dumpsters-CRM/internal/domain/model"
)

// scriptedCompleter returns replies in order and records every request.
type scriptedCompleter struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []core.CompletionRequest
}

func (c *scriptedCompleter) Complete(_ context.Context, req core.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.requests)
	c.requests = append(c.requests, req)
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(c.replies) {
		return c.replies[i], nil
	}
	return "", nil
}

func (c *scriptedCompleter) calls() []core.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]core.CompletionRequest(nil), c.requests...)
}

func testLocality() *model.Locality {
	pop := 961855
	county := "Travis"
	return &model.Locality{
		ID:         "loc-1",
		Name:       "Austin",
		RegionCode: "TX",
		Region:     "Texas",
		County:     &county,
		Population: &pop,
	}
}
