package config

import (
	"strings"

	"github.com/bytedance/sonic"

	"github.com/lumenview/lumenview/types"
)

// pathResolver answers dotted-path lookups ("middlewares.cors.params")
// against a flattened view of the loaded configuration. The view is built
// once per Load and is read-only afterwards.
type pathResolver struct {
	tree map[string]interface{}
}

func newPathResolver(config *types.ServiceConfig) *pathResolver {
	resolver := &pathResolver{tree: map[string]interface{}{}}

	raw, err := sonic.ConfigDefault.Marshal(config)
	if err != nil {
		return resolver
	}
	if err := sonic.ConfigDefault.Unmarshal(raw, &resolver.tree); err != nil {
		resolver.tree = map[string]interface{}{}
	}

	return resolver
}

// Lookup walks the tree one dotted segment at a time. A nil leaf counts as
// absent so unset optional sections fall through to caller defaults.
func (r *pathResolver) Lookup(path string) (interface{}, bool) {
	if path == "" {
		return r.tree, true
	}

	var node interface{} = r.tree
	for _, key := range strings.Split(path, ".") {
		branch, ok := node.(map[string]interface{})
		if !ok {
			return nil, false
		}
		node, ok = branch[key]
		if !ok || node == nil {
			return nil, false
		}
	}

	return node, true
}

// Decode resolves path and unmarshals the subtree into target.
func (r *pathResolver) Decode(path string, target interface{}) error {
	value, ok := r.Lookup(path)
	if !ok {
		return types.Errorf(types.ErrConfigNotFound, "path: %s", path)
	}

	raw, err := sonic.ConfigDefault.Marshal(value)
	if err != nil {
		return types.WrapError(err, "failed to encode config value")
	}
	if err := sonic.ConfigDefault.Unmarshal(raw, target); err != nil {
		return types.WrapError(err, "failed to decode config value")
	}

	return nil
}
