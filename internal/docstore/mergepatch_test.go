package docstore

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMergePatch(t *testing.T) {
	tests := []struct {
		name   string
		target any
		patch  any
		want   any
	}{
		{
			"replace scalar",
			Document{"a": "old"},
			Document{"a": "new"},
			Document{"a": "new"},
		},
		{
			"add field",
			Document{"a": "x"},
			Document{"b": float64(1)},
			Document{"a": "x", "b": float64(1)},
		},
		{
			"null deletes",
			Document{"a": "x", "b": "y"},
			Document{"b": nil},
			Document{"a": "x"},
		},
		{
			"nested merge",
			Document{"outer": map[string]any{"keep": "k", "change": "old"}},
			Document{"outer": map[string]any{"change": "new"}},
			Document{"outer": map[string]any{"keep": "k", "change": "new"}},
		},
		{
			"array replaced wholesale",
			Document{"list": []any{"a", "b"}},
			Document{"list": []any{"c"}},
			Document{"list": []any{"c"}},
		},
		{
			"object replaces scalar",
			Document{"a": "x"},
			Document{"a": map[string]any{"b": "y"}},
			Document{"a": map[string]any{"b": "y"}},
		},
		{
			"non-object patch replaces target",
			Document{"a": "x"},
			"scalar",
			"scalar",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergePatch(tt.target, tt.patch)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("MergePatch mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergePatch_DoesNotMutateTarget(t *testing.T) {
	target := Document{"outer": map[string]any{"a": "original"}}
	MergePatch(target, Document{"outer": map[string]any{"a": "patched"}})

	inner := target["outer"].(map[string]any)
	if inner["a"] != "original" {
		t.Errorf("target mutated: a = %v", inner["a"])
	}
}
