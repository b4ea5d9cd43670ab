package pagesjson

import (
	"context"
	"sync"

	"github.com/lexandro/define-pages-json/logging"
)

// prefetch evaluates every page that has no macro result yet, with at most
// cfg.Workers evaluations in flight. The merge steps that follow then only
// read cached results. The error of the first failing page in scan order is
// returned.
func (c *Context) prefetch(ctx context.Context) error {
	var pending []*Page
	for _, page := range c.allPages() {
		if !page.loaded() {
			pending = append(pending, page)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	workerCount := max(1, min(c.cfg.Workers, len(pending)))
	errs := make([]error, len(pending))
	jobs := make(chan int, len(pending))

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				_, errs[idx] = pending[idx].ensureOptions(ctx, false)
			}
		}()
	}
	for i := range pending {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	logging.Scope(c.logger, logging.ScopeGetMacroResult).Debug("pages evaluated",
		"count", len(pending), "workers", workerCount)

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// allPages lists top-level pages, then each sub-package's pages.
func (c *Context) allPages() []*Page {
	out := c.pages.list()
	for _, set := range c.subPackages {
		out = append(out, set.list()...)
	}
	return out
}
