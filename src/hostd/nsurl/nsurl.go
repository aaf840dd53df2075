// Package nsurl implements the ns:// addressing codec: parsing and
// emitting the URIs panels use to reference one another. The codec is the
// only external interface for panel addressing; it never touches the
// filesystem or the tree store.
package nsurl

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	hosterrors "github.com/panelforge/hostd/src/common/errors"
)

// Action selects whether an ns:// address navigates the current panel or
// opens a new child panel.
type Action string

const (
	ActionNavigate Action = "navigate"
	ActionChild    Action = "child"
)

// RepoArgSpec is either a bare repository identifier or an object naming a
// repository and an optional ref. Both shapes round-trip through JSON.
type RepoArgSpec struct {
	Repo string
	Ref  string
}

func (r *RepoArgSpec) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		r.Repo = bare
		r.Ref = ""
		return nil
	}
	var obj struct {
		Repo string `json:"repo"`
		Ref  string `json:"ref"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	r.Repo = obj.Repo
	r.Ref = obj.Ref
	return nil
}

func (r RepoArgSpec) MarshalJSON() ([]byte, error) {
	if r.Ref == "" {
		return json.Marshal(r.Repo)
	}
	return json.Marshal(struct {
		Repo string `json:"repo"`
		Ref  string `json:"ref"`
	}{r.Repo, r.Ref})
}

// UnsafeValue is the tri-state "unsafe" query parameter: "true"/"false"
// parse to a bool, anything else parses to a path string.
type UnsafeValue struct {
	Bool *bool
	Path *string
}

// Options holds the decoded query parameters of an ns:// address. Every
// field except Action is nil/empty when the parameter was absent, so a
// round trip never invents a value the caller did not supply.
type Options struct {
	Action       Action
	GitRef       *string
	TemplateSpec *string
	RepoArgs     map[string]RepoArgSpec
	Env          map[string]string
	StateArgs    interface{}
	Name         *string
	Focus        *bool
	Unsafe       *UnsafeValue
}

// Parse decodes an ns:// URI into its source path and Options. Non-ns
// schemes, empty sources, unknown actions, malformed JSON parameters, and
// non-string env values each produce a distinct error per the error
// handling design's input-error taxonomy.
func Parse(raw string) (string, Options, error) {
	if !strings.HasPrefix(raw, "ns:") {
		return "", Options{}, hosterrors.ErrInvalidScheme.WithMessagef("not an ns:// uri: %q", raw)
	}
	rest := raw[len("ns:"):]

	pathPart, queryPart := rest, ""
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		pathPart, queryPart = rest[:idx], rest[idx+1:]
	}

	// Accept both "ns:///path" and "ns://path": either way, the leading
	// authority segment is treated as part of the path.
	pathPart = strings.TrimPrefix(pathPart, "//")
	pathPart = strings.TrimPrefix(pathPart, "/")

	source, err := url.PathUnescape(pathPart)
	if err != nil {
		return "", Options{}, hosterrors.ErrInvalidScheme.WithCause(err)
	}
	if source == "" {
		return "", Options{}, hosterrors.ErrEmptySource
	}

	values, err := url.ParseQuery(queryPart)
	if err != nil {
		return "", Options{}, hosterrors.ErrMalformedJSON.WithCause(err)
	}

	opts := Options{Action: ActionNavigate}

	if v := values.Get("action"); v != "" {
		switch v {
		case string(ActionNavigate):
			opts.Action = ActionNavigate
		case string(ActionChild):
			opts.Action = ActionChild
		default:
			return "", Options{}, hosterrors.ErrUnknownAction.WithMessagef("unknown action %q", v)
		}
	}
	if v := values.Get("gitRef"); v != "" {
		opts.GitRef = &v
	}
	if v := values.Get("templateSpec"); v != "" {
		opts.TemplateSpec = &v
	}
	if v := values.Get("name"); v != "" {
		opts.Name = &v
	}
	if v := values.Get("focus"); v != "" {
		b := v == "true"
		opts.Focus = &b
	}
	if v := values.Get("unsafe"); v != "" {
		switch v {
		case "true":
			b := true
			opts.Unsafe = &UnsafeValue{Bool: &b}
		case "false":
			b := false
			opts.Unsafe = &UnsafeValue{Bool: &b}
		default:
			p := v
			opts.Unsafe = &UnsafeValue{Path: &p}
		}
	}
	if v := values.Get("repoArgs"); v != "" {
		var raw map[string]RepoArgSpec
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return "", Options{}, hosterrors.ErrMalformedJSON.WithCause(err)
		}
		opts.RepoArgs = raw
	}
	if v := values.Get("env"); v != "" {
		var raw map[string]interface{}
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			return "", Options{}, hosterrors.ErrMalformedJSON.WithCause(err)
		}
		env := make(map[string]string, len(raw))
		for k, val := range raw {
			s, ok := val.(string)
			if !ok {
				return "", Options{}, hosterrors.ErrInvalidEnv.WithMessagef("env[%q] is not a string", k)
			}
			env[k] = s
		}
		opts.Env = env
	}
	if v := values.Get("stateArgs"); v != "" {
		var parsed interface{}
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			return "", Options{}, hosterrors.ErrMalformedJSON.WithCause(err)
		}
		opts.StateArgs = parsed
	}

	return source, opts, nil
}

// Emit serialises a source path and Options back into an ns:// URI.
// action=navigate is omitted as the default; empty/nil parameters are
// omitted entirely, so Parse(Emit(source, opts)) reproduces every
// parameter that carries a value. A pointer to an empty string, an empty
// map, or Focus set to false is emitted as absent and parses back as nil.
func Emit(source string, opts Options) (string, error) {
	if source == "" {
		return "", hosterrors.ErrEmptySource
	}

	u := "ns:///" + escapeSourcePreservingSlashes(source)

	values := url.Values{}
	if opts.Action != "" && opts.Action != ActionNavigate {
		values.Set("action", string(opts.Action))
	}
	if opts.GitRef != nil && *opts.GitRef != "" {
		values.Set("gitRef", *opts.GitRef)
	}
	if opts.TemplateSpec != nil && *opts.TemplateSpec != "" {
		values.Set("templateSpec", *opts.TemplateSpec)
	}
	if opts.Name != nil && *opts.Name != "" {
		values.Set("name", *opts.Name)
	}
	if opts.Focus != nil && *opts.Focus {
		values.Set("focus", "true")
	}
	if opts.Unsafe != nil {
		switch {
		case opts.Unsafe.Bool != nil:
			values.Set("unsafe", strconv.FormatBool(*opts.Unsafe.Bool))
		case opts.Unsafe.Path != nil:
			values.Set("unsafe", *opts.Unsafe.Path)
		}
	}
	if len(opts.RepoArgs) > 0 {
		b, err := json.Marshal(opts.RepoArgs)
		if err != nil {
			return "", err
		}
		values.Set("repoArgs", string(b))
	}
	if len(opts.Env) > 0 {
		b, err := json.Marshal(opts.Env)
		if err != nil {
			return "", err
		}
		values.Set("env", string(b))
	}
	if opts.StateArgs != nil {
		b, err := json.Marshal(opts.StateArgs)
		if err != nil {
			return "", err
		}
		values.Set("stateArgs", string(b))
	}

	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	return u, nil
}

func escapeSourcePreservingSlashes(source string) string {
	segments := strings.Split(source, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
