package driver

import (
	"context"
	"errors"
	"sync"

	"moduletsx/pkg/document"
	"moduletsx/pkg/modules"
)

// ScriptResult is the outcome of bootstrapping one script
type ScriptResult struct {
	Script document.Script
	Unit   *modules.Unit
	Err    error
}

// Bootstrap imports every module-tsx script of doc. Scripts marked async
// start right away and run concurrently; the others run one after another in
// document order. A failing script does not stop the others. Results are
// returned in document order once every script has settled.
func (s *Session) Bootstrap(ctx context.Context, doc *document.Document) []ScriptResult {
	results := make([]ScriptResult, len(doc.Scripts))

	var wg sync.WaitGroup
	for i := range doc.Scripts {
		script := doc.Scripts[i]
		for _, attr := range script.Unsupported() {
			s.logger.WithPrefix("document").Warn("unsupported script attribute", "attribute", attr, "script", script.String())
		}

		if script.Async {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = s.runScript(ctx, script)
			}()
			continue
		}
		results[i] = s.runScript(ctx, script)
	}
	wg.Wait()

	return results
}

func (s *Session) runScript(ctx context.Context, script document.Script) ScriptResult {
	var unit *modules.Unit
	var err error
	if script.Inline() {
		unit, err = s.ImportInline(ctx, script.BaseURL, script.Code)
	} else {
		unit, err = s.ImportByIdentifier(ctx, script.Src, script.BaseURL)
	}

	if err != nil {
		s.logger.Error("script failed", "script", script.String(), "error", err)
	} else {
		s.logger.Info("script loaded", "script", script.String(), "unit", unit.ID)
	}
	return ScriptResult{Script: script, Unit: unit, Err: err}
}

// Failed joins the errors of the failed scripts, or returns nil
func Failed(results []ScriptResult) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}
