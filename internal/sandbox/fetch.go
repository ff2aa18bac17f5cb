package sandbox

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/LynxShu/ST-var-manager/pkg/domain"
	"go.starlark.net/starlark"
)

const (
	localContext = "sam.context"
	localDenied  = "sam.network_denied"

	maxResponseBytes = 1 << 20
)

// fetchBuiltin returns the network primitive bound to "fetch". When the
// function was not granted network access every call fails immediately.
func (x *Executor) fetchBuiltin(allowed bool) *starlark.Builtin {
	if !allowed {
		return starlark.NewBuiltin("fetch", func(thread *starlark.Thread, _ *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
			thread.SetLocal(localDenied, true)
			return nil, domain.ErrNetworkDisabled
		})
	}
	return starlark.NewBuiltin("fetch", x.fetch)
}

// fetch(url, method="GET", body=None, headers=None) returns
// {"status": int, "ok": bool, "body": str}.
func (x *Executor) fetch(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		url     string
		method  = "GET"
		body    starlark.Value = starlark.None
		headers *starlark.Dict
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "url", &url, "method?", &method, "body?", &body, "headers?", &headers); err != nil {
		return nil, err
	}

	ctx, _ := thread.Local(localContext).(context.Context)
	if ctx == nil {
		ctx = context.Background()
	}

	var reader io.Reader
	if body != starlark.None {
		s, ok := starlark.AsString(body)
		if !ok {
			s = body.String()
		}
		reader = strings.NewReader(s)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), url, reader)
	if err != nil {
		return nil, err
	}
	if headers != nil {
		for _, kv := range headers.Items() {
			k, _ := starlark.AsString(kv[0])
			v, _ := starlark.AsString(kv[1])
			req.Header.Set(k, v)
		}
	}

	resp, err := x.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return toStarlark(map[string]any{
		"status": resp.StatusCode,
		"ok":     resp.StatusCode >= 200 && resp.StatusCode < 300,
		"body":   string(data),
	}), nil
}
