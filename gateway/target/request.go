package target

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ecociel/deferral/domain"
)

const (
	ParamUsername          = "username"
	ParamRepo              = "repo"
	ParamCommitID          = "commitId"
	ParamPath              = "path"
	ParamShouldPostComment = "shouldPostComment"
)

// ErrBuild marks a task whose target call cannot be constructed. Retrying such
// a task will fail the same way until the stored record changes.
var ErrBuild = errors.New("build target call")

// Params returns the query parameters of the task's call. Subject fields win
// over additional params of the same name.
func Params(task domain.Task) map[string]string {
	params := make(map[string]string, len(task.AdditionalParams)+5)
	for k, v := range task.AdditionalParams {
		params[k] = v
	}
	params[ParamUsername] = task.Username
	params[ParamRepo] = task.Repo
	params[ParamCommitID] = task.CommitID
	params[ParamPath] = task.Path
	params[ParamShouldPostComment] = strconv.FormatBool(task.ShouldPostComment)
	return params
}

// BuildURL resolves the task's endpoint against base. The endpoint must be a
// path, optionally with a query and {name} placeholders that are filled from
// the task's params. Params not consumed by a placeholder become query
// parameters.
func BuildURL(base *url.URL, task domain.Task) (*url.URL, error) {
	if strings.TrimSpace(task.Endpoint) == "" {
		return nil, fmt.Errorf("%w: empty endpoint", ErrBuild)
	}
	rawPath, rawQuery, hasQuery := strings.Cut(task.Endpoint, "?")
	params := Params(task)
	path, consumed, err := expand(rawPath, params)
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint %q: %v", ErrBuild, task.Endpoint, err)
	}
	if hasQuery {
		path += "?" + rawQuery
	}
	ep, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: endpoint %q: %v", ErrBuild, task.Endpoint, err)
	}
	if ep.IsAbs() || ep.Host != "" {
		return nil, fmt.Errorf("%w: endpoint %q is not a path", ErrBuild, task.Endpoint)
	}

	root := *base
	if root.Path == "" {
		root.Path = "/"
	}
	u := root.JoinPath(ep.EscapedPath())
	q := ep.Query()
	for k, v := range params {
		if consumed[k] {
			continue
		}
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u, nil
}

func expand(path string, params map[string]string) (string, map[string]bool, error) {
	consumed := make(map[string]bool)
	var b strings.Builder
	for {
		open := strings.IndexByte(path, '{')
		if open < 0 {
			if strings.IndexByte(path, '}') >= 0 {
				return "", nil, errors.New("unbalanced '}'")
			}
			b.WriteString(path)
			return b.String(), consumed, nil
		}
		end := strings.IndexByte(path[open:], '}')
		if end < 0 {
			return "", nil, errors.New("unbalanced '{'")
		}
		if strings.IndexByte(path[:open], '}') >= 0 {
			return "", nil, errors.New("unbalanced '}'")
		}
		name := path[open+1 : open+end]
		v, ok := params[name]
		if !ok || name == "" {
			return "", nil, fmt.Errorf("unresolved placeholder {%s}", name)
		}
		if v == "." || v == ".." {
			return "", nil, fmt.Errorf("placeholder {%s} is a dot segment %q", name, v)
		}
		b.WriteString(path[:open])
		b.WriteString(url.PathEscape(v))
		consumed[name] = true
		path = path[open+end+1:]
	}
}
