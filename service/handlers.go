package service

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/brimdata/semq/api"
	"github.com/brimdata/semq/compiler"
	"github.com/brimdata/semq/compiler/describe"
	"github.com/brimdata/semq/compiler/sfmt"
	"github.com/brimdata/semq/runner"
	"go.uber.org/zap"
)

func handleVersion(c *Core, w http.ResponseWriter, r *http.Request) error {
	return respond(w, http.StatusOK, api.VersionResponse{Version: c.conf.Version})
}

func handleStatus(c *Core, w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", api.MediaTypeText)
	_, err := io.WriteString(w, "ok")
	return err
}

func decodeTranslate(r *http.Request) (*api.TranslateRequest, error) {
	var req api.TranslateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errBadRequest("malformed request: " + err.Error())
	}
	if req.URL == "" {
		return nil, errBadRequest("url is required")
	}
	return &req, nil
}

func (c *Core) translate(r *http.Request, req *api.TranslateRequest) (*compiler.Response, runner.Inputs, error) {
	opts := []compiler.Option{compiler.WithUpdate(req.Update())}
	if req.Text != "" {
		opts = append(opts, compiler.WithText(req.Text))
	}
	return c.runner.TranslateInputs(r.Context(), req.URL, opts...)
}

func handleTranslate(c *Core, w http.ResponseWriter, r *http.Request) error {
	format, err := api.MediaTypeToFormat(r.Header.Get("Accept"), "json")
	if err != nil {
		return errBadRequest(err.Error())
	}
	req, err := decodeTranslate(r)
	if err != nil {
		return err
	}
	if format == "text" {
		resp, _, err := c.translate(r, req)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", api.MediaTypeText)
		if resp.Translated != nil {
			io.WriteString(w, sfmt.Model(resp.Translated.ModelDef))
		}
		_, err = io.WriteString(w, compiler.FormatProblems(resp.Problems))
		return err
	}
	var key string
	if c.plans != nil && req.Cacheable() {
		key = runner.PlanKey(req.URL, req.Text, "")
		if b, ok := c.cachedPlan(r, key); ok {
			w.Header().Set(api.PlanCacheHeader, "hit")
			return respondRaw(w, b)
		}
	}
	resp, inputs, err := c.translate(r, req)
	if err != nil {
		return err
	}
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	if key != "" {
		w.Header().Set(api.PlanCacheHeader, "miss")
		// Only successful translations are kept.
		if resp.Translated != nil {
			c.putPlan(r, key, runner.Plan{Inputs: inputs, Response: b})
		}
	}
	return respondRaw(w, b)
}

// cachedPlan returns the cached response for key if the documents and
// schemas it was made from are unchanged.
func (c *Core) cachedPlan(r *http.Request, key string) ([]byte, bool) {
	b, ok, err := c.plans.Get(r.Context(), key)
	if err != nil {
		c.logger.Warn("plan cache read failed", zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var plan runner.Plan
	if err := json.Unmarshal(b, &plan); err != nil {
		c.logger.Warn("plan cache entry malformed", zap.Error(err))
		return nil, false
	}
	fresh, err := c.runner.Verify(r.Context(), plan.Inputs)
	if err != nil || !fresh {
		c.logger.Debug("plan cache entry stale", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return plan.Response, true
}

func (c *Core) putPlan(r *http.Request, key string, plan runner.Plan) {
	b, err := json.Marshal(plan)
	if err == nil {
		err = c.plans.Put(r.Context(), key, b)
	}
	if err != nil {
		c.logger.Warn("plan cache write failed", zap.Error(err))
	}
}

func handleDescribe(c *Core, w http.ResponseWriter, r *http.Request) error {
	req, err := decodeTranslate(r)
	if err != nil {
		return err
	}
	resp, _, err := c.translate(r, req)
	if err != nil {
		return err
	}
	if resp.Translated == nil {
		status, body := errorResponse(errBadRequest("translation failed"))
		body.Problems = resp.Problems
		return respond(w, status, body)
	}
	return respond(w, http.StatusOK, describe.Analyze(resp.Translated.ModelDef))
}

func respond(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", api.MediaTypeJSON)
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

func respondRaw(w http.ResponseWriter, b []byte) error {
	w.Header().Set("Content-Type", api.MediaTypeJSON)
	_, err := w.Write(b)
	return err
}
